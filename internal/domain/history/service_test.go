package history

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockRepo struct {
	store map[uuid.UUID]*PredictionLog
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*PredictionLog)}
}

func (m *mockRepo) Create(_ context.Context, e *PredictionLog) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	cp := *e
	m.store[e.ID] = &cp
	return nil
}

func (m *mockRepo) List(_ context.Context, disease string, limit, offset int) ([]*PredictionLog, int, error) {
	var all []*PredictionLog
	for _, e := range m.store {
		if disease == "" || e.Disease == disease {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockRepo) Stats(_ context.Context) ([]DiseaseStats, error) {
	byDisease := map[string]*DiseaseStats{}
	for _, e := range m.store {
		s, ok := byDisease[e.Disease]
		if !ok {
			s = &DiseaseStats{Disease: e.Disease}
			byDisease[e.Disease] = s
		}
		s.Total++
		s.AvgProbability += e.Probability
		if e.RiskLevel == "high" {
			s.HighRisk++
		}
		if e.CreatedAt.After(s.LastPrediction) {
			s.LastPrediction = e.CreatedAt
		}
	}
	var out []DiseaseStats
	for _, s := range byDisease {
		s.AvgProbability /= float64(s.Total)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Disease < out[j].Disease })
	return out, nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func TestLog_Success(t *testing.T) {
	svc, repo := newTestService()
	entry := &PredictionLog{Disease: "heart", Source: SourceModel, Probability: 0.8, RiskLevel: "high"}
	if err := svc.Log(context.Background(), entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.ID == uuid.Nil {
		t.Error("expected an assigned id")
	}
	if len(repo.store) != 1 {
		t.Errorf("expected 1 stored entry, got %d", len(repo.store))
	}
}

func TestLog_DefaultsSource(t *testing.T) {
	svc, _ := newTestService()
	entry := &PredictionLog{Disease: "heart", Probability: 0.5}
	if err := svc.Log(context.Background(), entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Source != SourceModel {
		t.Errorf("expected default source, got %q", entry.Source)
	}
}

func TestLog_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if err := svc.Log(ctx, &PredictionLog{Probability: 0.5}); err == nil {
		t.Error("expected error for missing disease")
	}
	if err := svc.Log(ctx, &PredictionLog{Disease: "heart", Source: "psychic"}); err == nil {
		t.Error("expected error for invalid source")
	}
	if err := svc.Log(ctx, &PredictionLog{Disease: "heart", Probability: 1.5}); err == nil {
		t.Error("expected error for out-of-range probability")
	}
}

func TestList_FilterAndPagination(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := svc.Log(ctx, &PredictionLog{Disease: "heart", Probability: 0.5}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := svc.Log(ctx, &PredictionLog{Disease: "diabetes", Probability: 0.5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, total, err := svc.List(ctx, "heart", 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
	_, total, err = svc.List(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 6 {
		t.Errorf("expected total 6 without filter, got %d", total)
	}
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	entry := &PredictionLog{Disease: "heart", Probability: 0.5}
	if err := svc.Log(ctx, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Delete(ctx, entry.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Delete(ctx, entry.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for _, p := range []float64{0.2, 0.8} {
		risk := "low"
		if p > 0.5 {
			risk = "high"
		}
		if err := svc.Log(ctx, &PredictionLog{Disease: "heart", Probability: p, RiskLevel: risk}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected stats for 1 disease, got %d", len(stats))
	}
	s := stats[0]
	if s.Total != 2 || s.HighRisk != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
	if s.AvgProbability < 0.49 || s.AvgProbability > 0.51 {
		t.Errorf("expected avg near 0.5, got %f", s.AvgProbability)
	}
}
