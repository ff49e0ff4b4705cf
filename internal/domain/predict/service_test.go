package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medscreen/medscreen/internal/knowledge"
)

type mockPredictor struct {
	pred *Prediction
	err  error
	got  Request
}

func (m *mockPredictor) Predict(_ context.Context, disease string, req Request) (*Prediction, error) {
	m.got = req
	if m.err != nil {
		return nil, m.err
	}
	p := *m.pred
	p.Disease = disease
	return &p, nil
}

type mockRecorder struct {
	records int
	err     error
}

func (m *mockRecorder) Record(_ context.Context, _ string, _ Request, _ *Prediction) error {
	m.records++
	return m.err
}

func testKB(t *testing.T) *knowledge.Base {
	t.Helper()
	kb, err := knowledge.LoadBuiltin()
	if err != nil {
		t.Fatalf("load knowledge base: %v", err)
	}
	return kb
}

func TestPredict_Success(t *testing.T) {
	mp := &mockPredictor{pred: &Prediction{Label: "positive", Probability: 0.82, RiskLevel: "high"}}
	rec := &mockRecorder{}
	svc := NewService(testKB(t), mp, rec, zerolog.Nop())

	pred, err := svc.Predict(context.Background(), "heart", Request{Features: map[string]any{"age": 61}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Disease != "heart" || pred.Probability != 0.82 {
		t.Errorf("unexpected prediction %+v", pred)
	}
	if rec.records != 1 {
		t.Errorf("expected 1 recorded prediction, got %d", rec.records)
	}
}

func TestPredict_UnknownDisease(t *testing.T) {
	svc := NewService(testKB(t), &mockPredictor{pred: &Prediction{}}, nil, zerolog.Nop())
	if _, err := svc.Predict(context.Background(), "gout", Request{Features: map[string]any{"x": 1}}); err == nil {
		t.Error("expected error for unknown disease")
	}
}

func TestPredict_NoPredictor(t *testing.T) {
	svc := NewService(testKB(t), nil, nil, zerolog.Nop())
	if _, err := svc.Predict(context.Background(), "heart", Request{Features: map[string]any{"x": 1}}); err != ErrUnavailable {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestPredict_MissingFeatures(t *testing.T) {
	svc := NewService(testKB(t), &mockPredictor{pred: &Prediction{}}, nil, zerolog.Nop())
	if _, err := svc.Predict(context.Background(), "heart", Request{}); err == nil {
		t.Error("expected error for empty features")
	}
}

func TestPredict_RecorderFailureIsNonFatal(t *testing.T) {
	mp := &mockPredictor{pred: &Prediction{Label: "negative"}}
	rec := &mockRecorder{err: fmt.Errorf("db down")}
	svc := NewService(testKB(t), mp, rec, zerolog.Nop())
	if _, err := svc.Predict(context.Background(), "diabetes", Request{Features: map[string]any{"x": 1}}); err != nil {
		t.Errorf("recorder failure should not fail the prediction: %v", err)
	}
}

func TestDiseases(t *testing.T) {
	svc := NewService(testKB(t), nil, nil, zerolog.Nop())
	diseases := svc.Diseases()
	if len(diseases) != 4 {
		t.Fatalf("expected 4 diseases, got %d", len(diseases))
	}
	for i := 1; i < len(diseases); i++ {
		if diseases[i-1].ID >= diseases[i].ID {
			t.Errorf("diseases not in stable id order: %q before %q", diseases[i-1].ID, diseases[i].ID)
		}
	}
	if diseases[0].HasModel {
		t.Error("expected has_model false without a predictor")
	}
}

func TestHTTPPredictor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict/heart" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Prediction{
			Label:       "positive",
			Probability: 0.7,
			RiskLevel:   "moderate",
			Advice:      "Discuss these results with your physician.",
			Contributions: []FeatureContribution{
				{Feature: "bp", Contribution: 0.31, Direction: "increases", Pct: 62.0},
				{Feature: "age", Contribution: 0.12, Direction: "increases", Pct: 24.0},
			},
		})
	}))
	defer srv.Close()

	p := NewHTTPPredictor(srv.URL)
	pred, err := p.Predict(context.Background(), "heart", Request{Features: map[string]any{"bp": 140}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Disease != "heart" || pred.Probability != 0.7 {
		t.Errorf("unexpected prediction %+v", pred)
	}
	if pred.Advice == "" {
		t.Error("expected advice to survive the decode")
	}
	if len(pred.Contributions) != 2 {
		t.Fatalf("expected 2 feature contributions, got %d", len(pred.Contributions))
	}
	if pred.Contributions[0].Feature != "bp" || pred.Contributions[0].Direction != "increases" {
		t.Errorf("unexpected top contribution %+v", pred.Contributions[0])
	}
	if pred.Contributions[0].Pct != 62.0 {
		t.Errorf("unexpected contribution pct %v", pred.Contributions[0].Pct)
	}
}

func TestHTTPPredictor_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPPredictor(srv.URL)
	if _, err := p.Predict(context.Background(), "heart", Request{}); err == nil {
		t.Error("expected error from upstream failure")
	}
}

func TestHandler_Predict_Unavailable(t *testing.T) {
	h := NewHandler(NewService(testKB(t), nil, nil, zerolog.Nop()))
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"features":{"x":1}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("disease")
	c.SetParamValues("heart")
	if err := h.Predict(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestHandler_Diseases(t *testing.T) {
	h := NewHandler(NewService(testKB(t), nil, nil, zerolog.Nop()))
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.Diseases(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
