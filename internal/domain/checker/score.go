package checker

import (
	"fmt"
	"strings"

	"github.com/medscreen/medscreen/internal/knowledge"
)

// profileWeight looks up a resolved concept in a disease profile. The lookup
// tolerates partial phrasing differences between the canonical concept and
// the profile key, with a length guard so short fragments cannot match
// broadly.
func profileWeight(d *knowledge.DiseaseProfile, t Tunables, conceptID string) (string, float64, bool) {
	if w, ok := d.Symptoms[conceptID]; ok {
		return conceptID, w, true
	}
	if len(conceptID) < t.MinSubstringLen {
		return "", 0, false
	}
	var bestKey string
	var bestW float64
	for key, w := range d.Symptoms {
		if len(key) < t.MinSubstringLen {
			continue
		}
		if !strings.Contains(key, conceptID) && !strings.Contains(conceptID, key) {
			continue
		}
		if bestKey == "" || len(key) > len(bestKey) || (len(key) == len(bestKey) && key < bestKey) {
			bestKey, bestW = key, w
		}
	}
	return bestKey, bestW, bestKey != ""
}

// scoreDisease computes the severity-weighted raw score of one disease for
// the resolved concepts. Each profile symptom counts at most once even when
// several inputs resolve into it.
func scoreDisease(kb *knowledge.Base, t Tunables, d *knowledge.DiseaseProfile, concepts []resolvedConcept, severity, duration map[string]string) (float64, []MatchedSymptom) {
	var score float64
	var matched []MatchedSymptom
	used := make(map[string]struct{}, len(concepts))
	for _, c := range concepts {
		key, weight, ok := profileWeight(d, t, c.ID)
		if !ok {
			continue
		}
		if _, dup := used[key]; dup {
			continue
		}
		used[key] = struct{}{}

		sev := normalizeSeverity(severityFor(severity, c))
		contribution := weight * t.severityMultiplier(sev)
		score += contribution

		display := c.ID
		if concept, ok := kb.Concept(c.ID); ok {
			display = concept.Display
		}
		matched = append(matched, MatchedSymptom{
			UserInput: c.UserInput,
			Concept:   display,
			MatchedTo: key,
			Weight:    weight,
			Severity:  sev,
			Duration:  durationFor(duration, c),
		})
	}
	return score, matched
}

// severityFor finds the severity the user attached to a symptom, keyed by the
// split phrase, the full entry it was split from, or the canonical concept id.
func severityFor(m map[string]string, c resolvedConcept) string {
	if m == nil {
		return SeverityModerate
	}
	for _, key := range symptomKeys(c) {
		if s, ok := m[key]; ok {
			return s
		}
	}
	return SeverityModerate
}

func durationFor(m map[string]string, c resolvedConcept) string {
	for _, key := range symptomKeys(c) {
		if d, ok := m[key]; ok {
			return d
		}
	}
	return ""
}

func symptomKeys(c resolvedConcept) []string {
	keys := []string{c.UserInput, knowledge.NormalizeText(c.UserInput)}
	if c.RawInput != "" && c.RawInput != c.UserInput {
		keys = append(keys, c.RawInput, knowledge.NormalizeText(c.RawInput))
	}
	return append(keys, c.ID)
}

// adjustDemographics applies the profile's age and sex risk factors on top of
// the raw score and reports which ones fired.
func adjustDemographics(d *knowledge.DiseaseProfile, age *int, sex string) (float64, []string) {
	factor := 1.0
	var notes []string
	if d.AgeModifier != nil && age != nil && *age >= d.AgeModifier.MinAge {
		factor *= d.AgeModifier.Factor
		notes = append(notes, fmt.Sprintf("Age %d or older raises the weighting for %s.", d.AgeModifier.MinAge, d.Name))
	}
	if d.SexModifier != nil && sex != "" {
		if f, ok := d.SexModifier[sex]; ok && f != 1.0 {
			factor *= f
			notes = append(notes, fmt.Sprintf("Reported sex adjusts the weighting for %s.", d.Name))
		}
	}
	return factor, notes
}

// confidence normalizes an adjusted score into [0, MaxConfidence]. The
// denominator is the best score the profile could have produced from the same
// number of distinct inputs at moderate severity, so reporting two strong
// symptoms out of two scores higher than two out of ten.
func confidence(t Tunables, d *knowledge.DiseaseProfile, adjusted float64, inputConcepts int) float64 {
	denom := d.MaxWeightSum(inputConcepts)
	if denom <= 0 {
		return 0
	}
	c := adjusted / denom
	if c > t.MaxConfidence {
		c = t.MaxConfidence
	}
	if c < 0 {
		c = 0
	}
	return c
}
