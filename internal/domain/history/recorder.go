package history

import (
	"context"
	"encoding/json"

	"github.com/medscreen/medscreen/internal/domain/predict"
)

// Recorder adapts the history service to the predict package's Recorder
// interface so model predictions are logged automatically.
type Recorder struct {
	svc *Service
}

func NewRecorder(svc *Service) *Recorder {
	return &Recorder{svc: svc}
}

func (r *Recorder) Record(ctx context.Context, disease string, req predict.Request, pred *predict.Prediction) error {
	input, err := json.Marshal(req)
	if err != nil {
		return err
	}
	result, err := json.Marshal(pred)
	if err != nil {
		return err
	}
	return r.svc.Log(ctx, &PredictionLog{
		Disease:     disease,
		Source:      SourceModel,
		Label:       pred.Label,
		Probability: pred.Probability,
		RiskLevel:   pred.RiskLevel,
		Input:       input,
		Result:      result,
	})
}
