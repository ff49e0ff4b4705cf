// Package knowledge holds the static clinical knowledge base used by the
// symptom checker: the symptom vocabulary, weighted disease profiles,
// emergency combination rules and follow-up question templates. The base is
// loaded once at process start and is read-only afterwards, so it is safe for
// concurrent use without locking.
package knowledge

import (
	"fmt"
	"sort"
	"strings"
)

// Boost map keys with special meaning in follow-up questions.
const (
	// GlobalBoostKey marks a multiplicative boost applied to the whole
	// disease score rather than a single symptom.
	GlobalBoostKey = "_global"
	// CrisisBoostKey marks an answer that must trigger crisis messaging
	// regardless of score.
	CrisisBoostKey = "_crisis"
)

// Question types supported by the follow-up generator.
const (
	QuestionYesNo  = "yesno"
	QuestionSelect = "select"
)

// Concept is a canonical symptom identity. Aliases are the raw phrasings a
// user might type; they are matched after lowercasing, trimming and
// punctuation stripping.
type Concept struct {
	ID      string   `json:"id"`
	Display string   `json:"display"`
	Aliases []string `json:"aliases,omitempty"`
}

// AgeModifier scales a disease score once the patient reaches a threshold age.
type AgeModifier struct {
	MinAge int     `json:"min_age"`
	Factor float64 `json:"factor"`
}

// FollowUpQuestion is a clarifying question attached to a disease profile.
// Boosts maps each possible answer to a set of score adjustments keyed by
// symptom concept id, or by GlobalBoostKey / CrisisBoostKey.
type FollowUpQuestion struct {
	ID        string                        `json:"id"`
	DiseaseID string                        `json:"disease_id"`
	Text      string                        `json:"question"`
	Type      string                        `json:"type"`
	Options   []string                      `json:"options,omitempty"`
	Boosts    map[string]map[string]float64 `json:"boosts"`
}

// DiseaseProfile describes one screenable condition: its weighted symptom
// associations, demographic risk modifiers, triage threshold and follow-up
// questions. Weights are normalized into (0,1] at load time; the raw authored
// values express relative diagnostic importance.
type DiseaseProfile struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Icon           string             `json:"icon"`
	BodySystem     string             `json:"body_system"`
	BodySystemIcon string             `json:"body_system_icon"`
	Description    string             `json:"description"`
	Symptoms       map[string]float64 `json:"symptoms"`
	// UrgencyThreshold is expressed on the same normalized scale as the
	// symptom weights and drives the profile's triage rule.
	UrgencyThreshold float64            `json:"urgency_threshold"`
	AgeModifier      *AgeModifier       `json:"age_modifier,omitempty"`
	SexModifier      map[string]float64 `json:"sex_modifier,omitempty"`
	Questions        []FollowUpQuestion `json:"questions,omitempty"`
}

// MaxWeightSum returns the sum of the top n symptom weights at moderate
// severity, the normalization denominator for confidence. n values larger
// than the profile are capped.
func (d *DiseaseProfile) MaxWeightSum(n int) float64 {
	weights := make([]float64, 0, len(d.Symptoms))
	for _, w := range d.Symptoms {
		weights = append(weights, w)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(weights)))
	if n > len(weights) {
		n = len(weights)
	}
	var sum float64
	for _, w := range weights[:n] {
		sum += w
	}
	return sum
}

// EmergencyRule is a fixed red-flag combination. All Required concepts must
// be present and at least MinSupporting of the Supporting concepts.
type EmergencyRule struct {
	Name          string   `json:"name"`
	Required      []string `json:"required"`
	Supporting    []string `json:"supporting,omitempty"`
	MinSupporting int      `json:"min_supporting"`
	Message       string   `json:"message"`
	Action        string   `json:"action"`
}

// Base is the assembled, immutable knowledge base.
type Base struct {
	concepts     map[string]*Concept
	aliasIndex   map[string]string // normalized alias -> concept id
	diseases     map[string]*DiseaseProfile
	diseaseOrder []string // disease ids, sorted for deterministic iteration
	rules        []EmergencyRule
	questions    map[string]*FollowUpQuestion // question id -> question
	suggestions  []string
	disclaimer   string
}

// NormalizeText lowercases, trims and strips punctuation from a raw phrase so
// it can be compared against the alias index.
func NormalizeText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case r == '-', r == '/':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Concept returns the concept with the given id.
func (b *Base) Concept(id string) (*Concept, bool) {
	c, ok := b.concepts[id]
	return c, ok
}

// ConceptCount returns the number of canonical concepts.
func (b *Base) ConceptCount() int { return len(b.concepts) }

// AliasCount returns the number of indexed aliases, canonical ids included.
func (b *Base) AliasCount() int { return len(b.aliasIndex) }

// ResolveAlias looks up a normalized phrase in the alias index. The phrase
// must already be normalized with NormalizeText.
func (b *Base) ResolveAlias(normalized string) (string, bool) {
	id, ok := b.aliasIndex[normalized]
	return id, ok
}

// Aliases returns the full alias index for iteration by the fuzzy matcher.
// Callers must not mutate the returned map.
func (b *Base) Aliases() map[string]string { return b.aliasIndex }

// Disease returns the profile with the given id.
func (b *Base) Disease(id string) (*DiseaseProfile, bool) {
	d, ok := b.diseases[id]
	return d, ok
}

// Diseases returns all profiles in stable id order.
func (b *Base) Diseases() []*DiseaseProfile {
	out := make([]*DiseaseProfile, 0, len(b.diseaseOrder))
	for _, id := range b.diseaseOrder {
		out = append(out, b.diseases[id])
	}
	return out
}

// DiseaseCount returns the number of screenable conditions.
func (b *Base) DiseaseCount() int { return len(b.diseases) }

// EmergencyRules returns the red-flag rule set.
func (b *Base) EmergencyRules() []EmergencyRule { return b.rules }

// Question returns a follow-up question by id.
func (b *Base) Question(id string) (*FollowUpQuestion, bool) {
	q, ok := b.questions[id]
	return q, ok
}

// Suggestions returns the quick-pick symptom list for UI chips.
func (b *Base) Suggestions() []string { return b.suggestions }

// Disclaimer returns the fixed disclaimer text attached to every result.
func (b *Base) Disclaimer() string { return b.disclaimer }

// ValidationError reports a malformed knowledge base. Loading fails hard on
// it: a partial vocabulary would silently produce wrong guidance.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("knowledge base validation failed: %s", strings.Join(e.Problems, "; "))
}
