package checker

// Severity levels a user can attach to a reported symptom.
const (
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// How a raw phrase was resolved to a canonical concept.
const (
	MatchExactAlias           = "exact_alias"
	MatchCaseInsensitiveAlias = "case_insensitive_alias"
	MatchFuzzy                = "fuzzy"
)

// Urgency badges derived from confidence.
const (
	UrgencyHigh     = "high"
	UrgencyModerate = "moderate"
	UrgencyLow      = "low"
)

// Triage tiers driven by each disease profile's own threshold rule.
const (
	TriageUrgent        = "urgent"
	TriagePrompt        = "prompt"
	TriageStandard      = "standard"
	TriageInformational = "informational"
)

// Analysis states reported back to the caller.
const (
	StateAnalyzed = "analyzed"
)

// AnalysisRequest is the per-call input of the symptom checker.
type AnalysisRequest struct {
	Symptoms    []string          `json:"symptoms"`
	Age         *int              `json:"age,omitempty"`
	Sex         string            `json:"sex,omitempty"`
	SeverityMap map[string]string `json:"severity_map,omitempty"`
	// DurationMap is informational only; durations are echoed on matched
	// symptoms but never influence scoring.
	DurationMap map[string]string `json:"duration_map,omitempty"`
}

// RefineRequest carries follow-up answers for a previous analysis. SessionID
// is optional: without it the call must be self-contained (full symptom set
// plus cumulative answers).
type RefineRequest struct {
	AnalysisRequest
	SessionID string            `json:"session_id,omitempty"`
	Answers   map[string]string `json:"answers,omitempty"`
}

// ExpansionEntry records how one raw input phrase was resolved, for
// explainability. Unresolved phrases are kept with Understood=false.
type ExpansionEntry struct {
	Original   string `json:"original"`
	ResolvedTo string `json:"resolved_to,omitempty"`
	MatchKind  string `json:"match_kind,omitempty"`
	Understood bool   `json:"understood"`
}

// MatchedSymptom is one profile symptom found in the user's report.
type MatchedSymptom struct {
	UserInput string  `json:"user_input"`
	Concept   string  `json:"concept"`
	MatchedTo string  `json:"matched_to"`
	Weight    float64 `json:"weight"`
	Severity  string  `json:"severity"`
	Duration  string  `json:"duration,omitempty"`
}

// DiseaseResult is the scored outcome for one disease profile. Score is the
// severity- and demographics-adjusted weighted sum on the normalized weight
// scale; Confidence is Score normalized against the profile's maximum
// possible sum and clamped into [0,1].
type DiseaseResult struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	Icon                 string           `json:"icon"`
	BodySystem           string           `json:"body_system"`
	BodySystemIcon       string           `json:"body_system_icon"`
	Confidence           float64          `json:"confidence"`
	Score                float64          `json:"score"`
	MatchedSymptoms      []MatchedSymptom `json:"matched_symptoms"`
	SymptomCount         int              `json:"symptom_count"`
	TotalSymptomsChecked int              `json:"total_symptoms_checked"`
	Urgency              string           `json:"urgency"`
	Triage               string           `json:"triage"`
	DemographicNotes     []string         `json:"demographic_notes,omitempty"`
	Description          string           `json:"description"`
	HasFollowups         bool             `json:"has_followup_questions"`
}

// EmergencyAlert is a fired red-flag rule.
type EmergencyAlert struct {
	Name     string `json:"name"`
	Message  string `json:"message"`
	Action   string `json:"action"`
	Severity string `json:"severity"`
}

// Advice is the tiered guidance attached to every result.
type Advice struct {
	Level    string   `json:"level"`
	Text     string   `json:"text"`
	SelfCare []string `json:"self_care"`
}

// BodySystemGroup groups disease results by anatomical system for display.
type BodySystemGroup struct {
	System   string          `json:"system"`
	Icon     string          `json:"icon"`
	Diseases []DiseaseResult `json:"diseases"`
}

// FollowupQuestionView is a question surfaced to the caller, stripped of its
// internal boost rules.
type FollowupQuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"question"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
}

// FollowupGroup carries the pending questions for one ambiguous disease.
type FollowupGroup struct {
	DiseaseID   string                 `json:"disease_id"`
	DiseaseName string                 `json:"disease_name"`
	Questions   []FollowupQuestionView `json:"questions"`
}

// Demographics echoes the validated demographic inputs.
type Demographics struct {
	Age *int   `json:"age,omitempty"`
	Sex string `json:"sex,omitempty"`
}

// AnalysisResult is the full response of one analyze or refine round.
type AnalysisResult struct {
	SessionID         string            `json:"session_id,omitempty"`
	State             string            `json:"state"`
	InputSymptoms     []string          `json:"input_symptoms"`
	ExpansionLog      []ExpansionEntry  `json:"expansion_log"`
	Unrecognized      []string          `json:"unrecognized,omitempty"`
	Diseases          []DiseaseResult   `json:"diseases"`
	BodySystemGroups  []BodySystemGroup `json:"body_system_groups"`
	Advice            Advice            `json:"advice"`
	Emergency         bool              `json:"emergency"`
	EmergencyAlerts   []EmergencyAlert  `json:"emergency_alerts"`
	FollowupQuestions []FollowupGroup   `json:"followup_questions"`
	Demographics      Demographics      `json:"demographics"`
	NoStrongMatches   bool              `json:"no_strong_matches"`
	// SessionContinuityLost is set when a refine call referenced an unknown
	// or expired session and was answered as a fresh analysis.
	SessionContinuityLost bool   `json:"session_continuity_lost,omitempty"`
	DiseasesScreened      int    `json:"diseases_screened"`
	Disclaimer            string `json:"disclaimer"`
}

// Tunables are the scoring and triage constants. All severity multipliers
// must be monotonically increasing and band edges monotonic with confidence.
type Tunables struct {
	SeverityMild     float64
	SeverityModerate float64
	SeveritySevere   float64

	// Confidence band in which a disease is neither ruled in nor out and
	// follow-up questions are generated.
	AmbiguousLow  float64
	AmbiguousHigh float64

	// Confidence cutoffs for the urgency badge.
	UrgencyHighMin     float64
	UrgencyModerateMin float64

	MaxQuestionsPerDisease int
	MaxFollowupDiseases    int

	// Fuzzy-matching guards for the phrase normalizer.
	FuzzySimilarityMin float64
	WordOverlapMin     float64
	MinSubstringLen    int

	// Confidence ceiling; matches are never reported as certainty.
	MaxConfidence float64
}

// DefaultTunables returns the production defaults.
func DefaultTunables() Tunables {
	return Tunables{
		SeverityMild:           0.7,
		SeverityModerate:       1.0,
		SeveritySevere:         1.3,
		AmbiguousLow:           0.30,
		AmbiguousHigh:          0.70,
		UrgencyHighMin:         0.6,
		UrgencyModerateMin:     0.3,
		MaxQuestionsPerDisease: 3,
		MaxFollowupDiseases:    3,
		FuzzySimilarityMin:     0.75,
		WordOverlapMin:         0.4,
		MinSubstringLen:        5,
		MaxConfidence:          0.99,
	}
}

func (t Tunables) severityMultiplier(severity string) float64 {
	switch severity {
	case SeverityMild:
		return t.SeverityMild
	case SeveritySevere:
		return t.SeveritySevere
	default:
		return t.SeverityModerate
	}
}

// normalizeSeverity collapses unknown severity values to moderate.
func normalizeSeverity(s string) string {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return s
	default:
		return SeverityModerate
	}
}
