package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/medscreen/medscreen/internal/knowledge"
)

// ErrUnavailable is returned when no model service is configured.
var ErrUnavailable = errors.New("model service not configured")

// Predictor asks an external model for a structured risk prediction.
type Predictor interface {
	Predict(ctx context.Context, disease string, req Request) (*Prediction, error)
}

// HTTPPredictor calls a remote model service over JSON.
type HTTPPredictor struct {
	baseURL string
	client  *http.Client
}

func NewHTTPPredictor(baseURL string) *HTTPPredictor {
	return &HTTPPredictor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *HTTPPredictor) Predict(ctx context.Context, disease string, req Request) (*Prediction, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/predict/%s", p.baseURL, url.PathEscape(disease))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call model service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("model service returned %d: %s", resp.StatusCode, snippet)
	}

	var pred Prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}
	if pred.Disease == "" {
		pred.Disease = disease
	}
	return &pred, nil
}

// Recorder persists prediction outcomes. It matches the history service and
// is optional.
type Recorder interface {
	Record(ctx context.Context, disease string, req Request, pred *Prediction) error
}

// Service validates prediction requests against the knowledge base, forwards
// them to the model and optionally records the outcome.
type Service struct {
	kb        *knowledge.Base
	predictor Predictor
	recorder  Recorder
	log       zerolog.Logger
}

// NewService builds the service. predictor and recorder may be nil; without a
// predictor every Predict call fails with ErrUnavailable.
func NewService(kb *knowledge.Base, predictor Predictor, recorder Recorder, log zerolog.Logger) *Service {
	return &Service{
		kb:        kb,
		predictor: predictor,
		recorder:  recorder,
		log:       log.With().Str("component", "predict").Logger(),
	}
}

func (s *Service) Predict(ctx context.Context, disease string, req Request) (*Prediction, error) {
	if _, ok := s.kb.Disease(disease); !ok {
		return nil, fmt.Errorf("unknown disease: %s", disease)
	}
	if s.predictor == nil {
		return nil, ErrUnavailable
	}
	if len(req.Features) == 0 {
		return nil, fmt.Errorf("features are required")
	}
	pred, err := s.predictor.Predict(ctx, disease, req)
	if err != nil {
		return nil, err
	}
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, disease, req, pred); err != nil {
			// Recording is best effort; the prediction still stands.
			s.log.Warn().Err(err).Str("disease", disease).Msg("failed to record prediction")
		}
	}
	return pred, nil
}

// Diseases lists the screenable catalog in stable order.
func (s *Service) Diseases() []DiseaseInfo {
	var out []DiseaseInfo
	for _, d := range s.kb.Diseases() {
		out = append(out, DiseaseInfo{
			ID:             d.ID,
			Name:           d.Name,
			Icon:           d.Icon,
			BodySystem:     d.BodySystem,
			Description:    d.Description,
			SymptomCount:   len(d.Symptoms),
			HasModel:       s.predictor != nil,
			HasFollowups:   len(d.Questions) > 0,
			QuestionsCount: len(d.Questions),
		})
	}
	return out
}
