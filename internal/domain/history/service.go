package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var validSources = map[string]bool{
	SourceChecker: true,
	SourceModel:   true,
}

type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "history").Logger(),
	}
}

func (s *Service) Log(ctx context.Context, entry *PredictionLog) error {
	if entry.Disease == "" {
		return fmt.Errorf("disease is required")
	}
	if entry.Source == "" {
		entry.Source = SourceModel
	}
	if !validSources[entry.Source] {
		return fmt.Errorf("invalid source: %s", entry.Source)
	}
	if entry.Probability < 0 || entry.Probability > 1 {
		return fmt.Errorf("probability out of range: %f", entry.Probability)
	}
	return s.repo.Create(ctx, entry)
}

func (s *Service) List(ctx context.Context, disease string, limit, offset int) ([]*PredictionLog, int, error) {
	return s.repo.List(ctx, disease, limit, offset)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Stats(ctx context.Context) ([]DiseaseStats, error) {
	return s.repo.Stats(ctx)
}
