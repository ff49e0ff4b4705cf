package checker

import (
	"sort"
	"strings"

	"github.com/medscreen/medscreen/internal/knowledge"
)

// splitCompound breaks a free-text phrase that names several symptoms at once
// ("chest pain and nausea", "fever, chills") into individual phrases.
func splitCompound(raw string) []string {
	s := strings.ReplaceAll(raw, ";", ",")
	s = strings.ReplaceAll(s, " and ", ",")
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolvePhrase maps one phrase to a canonical concept id. The chain is
// ordered from strict to lenient: exact alias, case-insensitive alias,
// substring containment, token overlap, then edit-distance similarity.
// Everything past the alias lookups is reported as a fuzzy match.
func resolvePhrase(kb *knowledge.Base, t Tunables, raw string) (string, string, bool) {
	if id, ok := kb.ResolveAlias(raw); ok {
		if raw == strings.ToLower(strings.TrimSpace(raw)) {
			return id, MatchExactAlias, true
		}
		return id, MatchCaseInsensitiveAlias, true
	}
	norm := knowledge.NormalizeText(raw)
	if norm == "" {
		return "", "", false
	}
	if id, ok := kb.ResolveAlias(norm); ok {
		return id, MatchCaseInsensitiveAlias, true
	}

	if id, ok := resolveSubstring(kb, t, norm); ok {
		return id, MatchFuzzy, true
	}
	if id, ok := resolveByTokens(kb, t, norm); ok {
		return id, MatchFuzzy, true
	}
	if id, ok := resolveByDistance(kb, t, norm); ok {
		return id, MatchFuzzy, true
	}
	return "", "", false
}

// resolveSubstring matches when either string contains the other. Short
// phrases are excluded so a fragment like "pain" cannot claim every
// pain-related concept.
func resolveSubstring(kb *knowledge.Base, t Tunables, norm string) (string, bool) {
	if len(norm) < t.MinSubstringLen {
		return "", false
	}
	var best string
	for alias := range kb.Aliases() {
		if len(alias) < t.MinSubstringLen {
			continue
		}
		if !strings.Contains(norm, alias) && !strings.Contains(alias, norm) {
			continue
		}
		// Prefer the longest overlapping alias; ties resolve to the
		// lexicographically smaller one for determinism.
		if len(alias) > len(best) || (len(alias) == len(best) && alias < best) {
			best = alias
		}
	}
	if best == "" {
		return "", false
	}
	id, _ := kb.ResolveAlias(best)
	return id, true
}

// resolveByTokens scores candidates by shared-word ratio.
func resolveByTokens(kb *knowledge.Base, t Tunables, norm string) (string, bool) {
	words := strings.Fields(norm)
	if len(words) == 0 {
		return "", false
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}

	type cand struct {
		id    string
		score float64
	}
	var cands []cand
	for alias, id := range kb.Aliases() {
		aw := strings.Fields(alias)
		if len(aw) == 0 {
			continue
		}
		shared := 0
		for _, w := range aw {
			if _, ok := set[w]; ok {
				shared++
			}
		}
		if shared == 0 {
			continue
		}
		denom := len(aw)
		if len(words) > denom {
			denom = len(words)
		}
		score := float64(shared) / float64(denom)
		if score > t.WordOverlapMin {
			cands = append(cands, cand{id: id, score: score})
		}
	}
	if len(cands) == 0 {
		return "", false
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].id < cands[j].id
	})
	return cands[0].id, true
}

// resolveByDistance is the last-resort typo catcher using normalized
// Levenshtein similarity.
func resolveByDistance(kb *knowledge.Base, t Tunables, norm string) (string, bool) {
	bestID, bestScore := "", 0.0
	for alias, id := range kb.Aliases() {
		score := similarity(norm, alias)
		if score < t.FuzzySimilarityMin {
			continue
		}
		if score > bestScore || (score == bestScore && id < bestID) {
			bestID, bestScore = id, score
		}
	}
	return bestID, bestID != ""
}

// similarity is 1 - dist/maxlen, in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(max)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// expandSymptoms resolves every raw input into zero or more canonical
// concepts and keeps a full audit trail. Duplicate concepts collapse to one
// occurrence, first mention wins.
func expandSymptoms(kb *knowledge.Base, t Tunables, inputs []string) (concepts []resolvedConcept, log []ExpansionEntry) {
	seen := make(map[string]struct{})
	for _, raw := range inputs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		for _, phrase := range splitCompound(raw) {
			id, kind, ok := resolvePhrase(kb, t, phrase)
			if !ok {
				log = append(log, ExpansionEntry{Original: phrase, Understood: false})
				continue
			}
			log = append(log, ExpansionEntry{
				Original:   phrase,
				ResolvedTo: id,
				MatchKind:  kind,
				Understood: true,
			})
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			concepts = append(concepts, resolvedConcept{ID: id, UserInput: phrase, RawInput: raw})
		}
	}
	return concepts, log
}

// resolvedConcept pairs a canonical concept with the phrase that produced it.
// RawInput keeps the user's original entry before compound splitting, so
// severity and duration keyed by the full entry still apply to each part.
type resolvedConcept struct {
	ID        string
	UserInput string
	RawInput  string
}
