package predict

// Request carries the feature vector forwarded to the model service. Features
// are passed through untouched; the model service owns their interpretation.
type Request struct {
	Features map[string]any `json:"features"`
	Age      *int           `json:"age,omitempty"`
	Sex      string         `json:"sex,omitempty"`
}

// FeatureContribution is one entry of the model's explanation: how much a
// single input feature pushed the probability, and in which direction.
type FeatureContribution struct {
	Feature      string  `json:"feature"`
	Contribution float64 `json:"contribution"`
	Direction    string  `json:"direction"`
	Pct          float64 `json:"pct,omitempty"`
}

// Prediction is the model service's answer for one disease.
type Prediction struct {
	Disease       string                `json:"disease"`
	Label         string                `json:"label"`
	Probability   float64               `json:"probability"`
	RiskLevel     string                `json:"risk_level"`
	Advice        string                `json:"advice,omitempty"`
	Contributions []FeatureContribution `json:"contributions,omitempty"`
	ModelVersion  string                `json:"model_version,omitempty"`
}

// DiseaseInfo is the catalog entry returned by the disease listing.
type DiseaseInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Icon           string `json:"icon"`
	BodySystem     string `json:"body_system"`
	Description    string `json:"description"`
	SymptomCount   int    `json:"symptom_count"`
	HasModel       bool   `json:"has_model"`
	HasFollowups   bool   `json:"has_followup_questions"`
	QuestionsCount int    `json:"questions_count"`
}
