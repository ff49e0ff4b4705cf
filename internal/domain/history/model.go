package history

import (
	"time"

	"github.com/google/uuid"
)

// Sources of a prediction log entry.
const (
	SourceChecker = "checker"
	SourceModel   = "model"
)

// PredictionLog is one persisted screening outcome. Input and Result hold the
// request and response payloads as JSON so the log survives schema drift in
// either direction.
type PredictionLog struct {
	ID          uuid.UUID `json:"id"`
	Disease     string    `json:"disease"`
	Source      string    `json:"source"`
	Label       string    `json:"label,omitempty"`
	Probability float64   `json:"probability"`
	RiskLevel   string    `json:"risk_level,omitempty"`
	Input       []byte    `json:"input,omitempty"`
	Result      []byte    `json:"result,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DiseaseStats aggregates logged predictions for one disease.
type DiseaseStats struct {
	Disease        string    `json:"disease"`
	Total          int       `json:"total"`
	AvgProbability float64   `json:"avg_probability"`
	HighRisk       int       `json:"high_risk"`
	LastPrediction time.Time `json:"last_prediction"`
}
