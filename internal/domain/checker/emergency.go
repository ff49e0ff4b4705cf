package checker

import (
	"strings"

	"github.com/medscreen/medscreen/internal/knowledge"
)

// DetectEmergencies evaluates every red-flag rule against the resolved
// concepts. Detection runs before and independently of disease scoring: a
// fired rule is reported even when no disease matches at all.
func DetectEmergencies(kb *knowledge.Base, t Tunables, concepts []resolvedConcept) []EmergencyAlert {
	present := make(map[string]struct{}, len(concepts))
	for _, c := range concepts {
		present[c.ID] = struct{}{}
	}

	var alerts []EmergencyAlert
	for _, rule := range kb.EmergencyRules() {
		if !ruleFires(rule, present, t) {
			continue
		}
		alerts = append(alerts, EmergencyAlert{
			Name:     rule.Name,
			Message:  rule.Message,
			Action:   rule.Action,
			Severity: "critical",
		})
	}
	return alerts
}

func ruleFires(rule knowledge.EmergencyRule, present map[string]struct{}, t Tunables) bool {
	for _, req := range rule.Required {
		if !conceptPresent(present, req, t) {
			return false
		}
	}
	if len(rule.Supporting) == 0 {
		return true
	}
	supporting := 0
	for _, s := range rule.Supporting {
		if conceptPresent(present, s, t) {
			supporting++
		}
	}
	return supporting >= rule.MinSupporting
}

// conceptPresent checks rule membership with the same substring tolerance the
// scorer uses, so a rule naming "chest pain" also fires on the more specific
// "chest pain radiating to arm".
func conceptPresent(present map[string]struct{}, want string, t Tunables) bool {
	if _, ok := present[want]; ok {
		return true
	}
	if len(want) < t.MinSubstringLen {
		return false
	}
	for have := range present {
		if len(have) < t.MinSubstringLen {
			continue
		}
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return true
		}
	}
	return false
}
