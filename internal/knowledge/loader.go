package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Override file names recognised inside KB_DIR. Each file replaces the
// corresponding built-in section wholesale.
const (
	vocabularyFile = "vocabulary.json"
	diseasesFile   = "diseases.json"
	rulesFile      = "emergency_rules.json"
)

type vocabularyDoc struct {
	Synonyms    map[string]string `json:"synonyms"`
	Suggestions []string          `json:"suggestions,omitempty"`
	Disclaimer  string            `json:"disclaimer,omitempty"`
}

// LoadBuiltin assembles the knowledge base from the compiled-in dataset.
func LoadBuiltin() (*Base, error) {
	return build(builtinSynonyms, builtinDiseases, builtinRules, builtinSuggestions, builtinDisclaimer)
}

// Load assembles the knowledge base, applying JSON overrides from dir when
// present. An empty dir loads the built-in dataset. Any validation problem is
// fatal: the process must not start on a partial or inconsistent base.
func Load(dir string) (*Base, error) {
	synonyms := builtinSynonyms
	diseases := builtinDiseases
	rules := builtinRules
	suggestions := builtinSuggestions
	disclaimer := builtinDisclaimer

	if dir != "" {
		var vocab vocabularyDoc
		ok, err := readJSON(filepath.Join(dir, vocabularyFile), &vocab)
		if err != nil {
			return nil, err
		}
		if ok {
			synonyms = vocab.Synonyms
			if len(vocab.Suggestions) > 0 {
				suggestions = vocab.Suggestions
			}
			if vocab.Disclaimer != "" {
				disclaimer = vocab.Disclaimer
			}
		}

		var dd []DiseaseProfile
		ok, err = readJSON(filepath.Join(dir, diseasesFile), &dd)
		if err != nil {
			return nil, err
		}
		if ok {
			diseases = dd
		}

		var rr []EmergencyRule
		ok, err = readJSON(filepath.Join(dir, rulesFile), &rr)
		if err != nil {
			return nil, err
		}
		if ok {
			rules = rr
		}
	}

	return build(synonyms, diseases, rules, suggestions, disclaimer)
}

func readJSON(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// build copies the raw dataset into an immutable Base, normalizing each
// profile's weights into (0,1] and scaling the urgency threshold and additive
// question boosts by the same divisor so triage math stays consistent.
func build(synonyms map[string]string, diseases []DiseaseProfile, rules []EmergencyRule,
	suggestions []string, disclaimer string) (*Base, error) {

	var problems []string

	b := &Base{
		concepts:    make(map[string]*Concept),
		aliasIndex:  make(map[string]string),
		diseases:    make(map[string]*DiseaseProfile),
		questions:   make(map[string]*FollowUpQuestion),
		rules:       append([]EmergencyRule(nil), rules...),
		suggestions: append([]string(nil), suggestions...),
		disclaimer:  disclaimer,
	}

	addConcept := func(id string) *Concept {
		if c, ok := b.concepts[id]; ok {
			return c
		}
		c := &Concept{ID: id, Display: id}
		b.concepts[id] = c
		b.aliasIndex[NormalizeText(id)] = id
		return c
	}

	// Concepts come from disease symptom keys and synonym targets; aliases
	// from the synonym map.
	for i := range diseases {
		for symptom := range diseases[i].Symptoms {
			addConcept(symptom)
		}
	}
	for alias, target := range synonyms {
		addConcept(target)
		norm := NormalizeText(alias)
		if norm == "" {
			problems = append(problems, fmt.Sprintf("synonym %q normalizes to empty string", alias))
			continue
		}
		if existing, ok := b.aliasIndex[norm]; ok && existing != target {
			problems = append(problems, fmt.Sprintf("alias %q maps to both %q and %q", alias, existing, target))
			continue
		}
		b.aliasIndex[norm] = target
		c := b.concepts[target]
		c.Aliases = append(c.Aliases, norm)
	}
	for _, c := range b.concepts {
		sort.Strings(c.Aliases)
	}

	for i := range diseases {
		src := &diseases[i]
		if src.ID == "" {
			problems = append(problems, "disease with empty id")
			continue
		}
		if _, dup := b.diseases[src.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate disease id %q", src.ID))
			continue
		}
		if len(src.Symptoms) == 0 {
			problems = append(problems, fmt.Sprintf("disease %q has no symptom associations", src.ID))
			continue
		}

		var maxWeight float64
		for symptom, w := range src.Symptoms {
			if w <= 0 {
				problems = append(problems, fmt.Sprintf("disease %q: symptom %q has non-positive weight", src.ID, symptom))
			}
			if w > maxWeight {
				maxWeight = w
			}
		}
		if maxWeight <= 0 {
			continue
		}

		d := &DiseaseProfile{
			ID:               src.ID,
			Name:             src.Name,
			Icon:             src.Icon,
			BodySystem:       src.BodySystem,
			BodySystemIcon:   src.BodySystemIcon,
			Description:      src.Description,
			Symptoms:         make(map[string]float64, len(src.Symptoms)),
			UrgencyThreshold: src.UrgencyThreshold / maxWeight,
			SexModifier:      src.SexModifier,
		}
		if src.AgeModifier != nil {
			if src.AgeModifier.Factor <= 0 {
				problems = append(problems, fmt.Sprintf("disease %q: age modifier factor must be positive", src.ID))
			}
			mod := *src.AgeModifier
			d.AgeModifier = &mod
		}
		for sex, f := range src.SexModifier {
			if f <= 0 {
				problems = append(problems, fmt.Sprintf("disease %q: sex modifier %q must be positive", src.ID, sex))
			}
		}
		for symptom, w := range src.Symptoms {
			d.Symptoms[symptom] = w / maxWeight
		}

		// Preallocated so the question index can hold stable pointers.
		d.Questions = make([]FollowUpQuestion, 0, len(src.Questions))
		for _, q := range src.Questions {
			cq := q
			cq.DiseaseID = src.ID
			cq.Boosts = make(map[string]map[string]float64, len(q.Boosts))
			for answer, boosts := range q.Boosts {
				if cq.Type == QuestionSelect && !containsString(cq.Options, answer) {
					problems = append(problems, fmt.Sprintf("question %q: boost answer %q not among options", q.ID, answer))
				}
				scaled := make(map[string]float64, len(boosts))
				for key, val := range boosts {
					switch key {
					case GlobalBoostKey, CrisisBoostKey:
						scaled[key] = val
					default:
						if _, ok := b.concepts[key]; !ok {
							problems = append(problems, fmt.Sprintf("question %q boosts unknown concept %q", q.ID, key))
						}
						scaled[key] = val / maxWeight
					}
				}
				cq.Boosts[answer] = scaled
			}
			if _, dup := b.questions[cq.ID]; dup {
				problems = append(problems, fmt.Sprintf("duplicate question id %q", cq.ID))
				continue
			}
			d.Questions = append(d.Questions, cq)
			b.questions[cq.ID] = &d.Questions[len(d.Questions)-1]
		}

		b.diseases[d.ID] = d
		b.diseaseOrder = append(b.diseaseOrder, d.ID)
	}
	sort.Strings(b.diseaseOrder)

	for _, rule := range b.rules {
		if len(rule.Required) == 0 {
			problems = append(problems, fmt.Sprintf("emergency rule %q has no required concepts", rule.Name))
		}
		if rule.MinSupporting > len(rule.Supporting) {
			problems = append(problems, fmt.Sprintf("emergency rule %q requires %d supporting concepts but lists %d",
				rule.Name, rule.MinSupporting, len(rule.Supporting)))
		}
		for _, id := range append(append([]string(nil), rule.Required...), rule.Supporting...) {
			if _, ok := b.concepts[id]; !ok {
				problems = append(problems, fmt.Sprintf("emergency rule %q references unknown concept %q", rule.Name, id))
			}
		}
	}

	// Picklist contract: every UI suggestion must resolve through the alias
	// index, otherwise chips would silently fall through to fuzzy matching.
	for _, s := range b.suggestions {
		if _, ok := b.aliasIndex[NormalizeText(s)]; !ok {
			problems = append(problems, fmt.Sprintf("suggestion %q does not resolve to a concept", s))
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, &ValidationError{Problems: problems}
	}
	return b, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
