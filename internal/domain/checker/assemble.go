package checker

import (
	"sort"

	"github.com/medscreen/medscreen/internal/knowledge"
)

// urgencyFor maps confidence onto the urgency badge.
func urgencyFor(t Tunables, conf float64) string {
	switch {
	case conf >= t.UrgencyHighMin:
		return UrgencyHigh
	case conf >= t.UrgencyModerateMin:
		return UrgencyModerate
	default:
		return UrgencyLow
	}
}

// triageFor applies the profile's own threshold rule to the adjusted score.
// Crossing the threshold at 1.5x with solid confidence is urgent; 1.5x alone
// warrants prompt attention; reaching the threshold means routine care is
// reasonable; below it the match is informational.
func triageFor(d *knowledge.DiseaseProfile, adjusted, conf float64) string {
	switch {
	case d.UrgencyThreshold <= 0:
		return TriageInformational
	case adjusted >= 1.5*d.UrgencyThreshold && conf > 0.5:
		return TriageUrgent
	case adjusted >= 1.5*d.UrgencyThreshold:
		return TriagePrompt
	case adjusted >= d.UrgencyThreshold:
		return TriageStandard
	default:
		return TriageInformational
	}
}

// sortResults orders disease results for presentation: confidence descending,
// then matched symptom count descending, then disease id ascending so equal
// scores always render in the same order.
func sortResults(results []DiseaseResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		if results[i].SymptomCount != results[j].SymptomCount {
			return results[i].SymptomCount > results[j].SymptomCount
		}
		return results[i].ID < results[j].ID
	})
}

// groupBySystem buckets ranked results by body system, preserving rank order
// inside each bucket and ordering buckets by their best-ranked member.
func groupBySystem(results []DiseaseResult) []BodySystemGroup {
	index := make(map[string]int)
	var groups []BodySystemGroup
	for _, r := range results {
		i, ok := index[r.BodySystem]
		if !ok {
			i = len(groups)
			index[r.BodySystem] = i
			groups = append(groups, BodySystemGroup{System: r.BodySystem, Icon: r.BodySystemIcon})
		}
		groups[i].Diseases = append(groups[i].Diseases, r)
	}
	return groups
}

// adviceFor derives the overall guidance tier from the emergency state and
// the strongest result.
func adviceFor(emergency bool, results []DiseaseResult) Advice {
	if emergency {
		return Advice{
			Level: "emergency",
			Text:  "Your symptoms may indicate a medical emergency. Call emergency services or go to the nearest emergency department now.",
		}
	}
	if len(results) == 0 {
		return Advice{
			Level: "general",
			Text:  "We could not identify a likely condition from your symptoms. If they persist or worsen, please consult a healthcare provider.",
			SelfCare: []string{
				"Monitor your symptoms and note any changes",
				"Rest and stay hydrated",
				"Seek medical advice if symptoms persist beyond a few days",
			},
		}
	}
	top := results[0]
	switch top.Triage {
	case TriageUrgent:
		return Advice{
			Level: "urgent",
			Text:  "Your symptoms suggest a condition that should be evaluated urgently. Seek medical care today.",
		}
	case TriagePrompt:
		return Advice{
			Level: "prompt",
			Text:  "Your symptoms are worth discussing with a doctor soon. Book an appointment within the next few days.",
			SelfCare: []string{
				"Keep a simple diary of when symptoms occur",
				"Avoid strenuous activity until you have been seen",
			},
		}
	case TriageStandard:
		return Advice{
			Level: "routine",
			Text:  "Consider scheduling a routine appointment with your healthcare provider to discuss these symptoms.",
			SelfCare: []string{
				"Monitor your symptoms and note any changes",
				"Maintain regular sleep, hydration and meals",
				"Seek care sooner if symptoms intensify",
			},
		}
	default:
		return Advice{
			Level: "selfcare",
			Text:  "Your symptoms do not currently suggest an urgent condition. Self-care and observation are reasonable.",
			SelfCare: []string{
				"Rest and stay hydrated",
				"Use over-the-counter remedies as directed for comfort",
				"See a doctor if symptoms last more than a week or get worse",
			},
		}
	}
}
