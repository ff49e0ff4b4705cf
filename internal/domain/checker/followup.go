package checker

import (
	"sort"
	"strings"

	"github.com/medscreen/medscreen/internal/knowledge"
)

// GenerateFollowups picks the clarifying questions worth asking after a
// scoring round. Only diseases inside the ambiguous confidence band get
// questions, at most MaxFollowupDiseases diseases and MaxQuestionsPerDisease
// questions each, ranked by how much a best-case answer could move the score.
// Already-answered questions are never re-asked.
func GenerateFollowups(kb *knowledge.Base, t Tunables, results []DiseaseResult, answered map[string]string) []FollowupGroup {
	var groups []FollowupGroup
	for _, r := range results {
		if len(groups) >= t.MaxFollowupDiseases {
			break
		}
		if r.Confidence <= t.AmbiguousLow || r.Confidence >= t.AmbiguousHigh {
			continue
		}
		d, ok := kb.Disease(r.ID)
		if !ok || len(d.Questions) == 0 {
			continue
		}

		type ranked struct {
			q     *knowledge.FollowUpQuestion
			delta float64
		}
		var cands []ranked
		for i := range d.Questions {
			q := &d.Questions[i]
			if _, done := answered[q.ID]; done {
				continue
			}
			cands = append(cands, ranked{q: q, delta: potentialDelta(d, q)})
		}
		if len(cands) == 0 {
			continue
		}
		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].delta != cands[j].delta {
				return cands[i].delta > cands[j].delta
			}
			return cands[i].q.ID < cands[j].q.ID
		})
		if len(cands) > t.MaxQuestionsPerDisease {
			cands = cands[:t.MaxQuestionsPerDisease]
		}

		group := FollowupGroup{DiseaseID: d.ID, DiseaseName: d.Name}
		for _, c := range cands {
			group.Questions = append(group.Questions, FollowupQuestionView{
				ID:      c.q.ID,
				Text:    c.q.Text,
				Type:    c.q.Type,
				Options: c.q.Options,
			})
		}
		groups = append(groups, group)
	}
	return groups
}

// potentialDelta estimates the largest score movement any single answer to
// the question could produce, used only for ranking.
func potentialDelta(d *knowledge.DiseaseProfile, q *knowledge.FollowUpQuestion) float64 {
	var best float64
	for _, boosts := range q.Boosts {
		var delta float64
		for key, v := range boosts {
			switch key {
			case knowledge.GlobalBoostKey:
				if v > 1 {
					delta += (v - 1) * d.UrgencyThreshold
				}
			case knowledge.CrisisBoostKey:
				delta += d.UrgencyThreshold
			default:
				if v > 0 {
					delta += v
				}
			}
		}
		if delta > best {
			best = delta
		}
	}
	return best
}

// applyAnswers folds follow-up answers for one disease into its raw score.
// Additive boosts land on the normalized weight scale, global boosts multiply
// the whole score, and a crisis boost raises the crisis flag without touching
// the score. Unknown question ids and answers that match no boost rule are
// ignored.
func applyAnswers(kb *knowledge.Base, d *knowledge.DiseaseProfile, answers map[string]string, score float64) (float64, bool) {
	crisis := false
	ids := make([]string, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		q, ok := kb.Question(id)
		if !ok || q.DiseaseID != d.ID {
			continue
		}
		boosts, ok := q.Boosts[normalizeAnswer(q, answers[id])]
		if !ok {
			continue
		}
		// Additive boosts apply before any global multiplier so the
		// result does not depend on map iteration order.
		global := 1.0
		for key, v := range boosts {
			switch key {
			case knowledge.GlobalBoostKey:
				global *= v
			case knowledge.CrisisBoostKey:
				crisis = true
			default:
				score += v
			}
		}
		score *= global
	}
	return score, crisis
}

// normalizeAnswer maps free-form yes/no spellings onto the boost keys.
func normalizeAnswer(q *knowledge.FollowUpQuestion, answer string) string {
	a := strings.ToLower(strings.TrimSpace(answer))
	if q.Type != knowledge.QuestionYesNo {
		return a
	}
	switch a {
	case "yes", "y", "true", "1":
		return "yes"
	case "no", "n", "false", "0":
		return "no"
	}
	return a
}
