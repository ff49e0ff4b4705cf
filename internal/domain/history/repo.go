package history

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a log entry does not exist.
var ErrNotFound = errors.New("prediction log entry not found")

type Repository interface {
	Create(ctx context.Context, entry *PredictionLog) error
	List(ctx context.Context, disease string, limit, offset int) ([]*PredictionLog, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) ([]DiseaseStats, error)
}
