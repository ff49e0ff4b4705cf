package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const logCols = `id, disease, source, label, probability, risk_level, input, result, created_at`

func scanLog(row pgx.Row) (*PredictionLog, error) {
	var e PredictionLog
	err := row.Scan(&e.ID, &e.Disease, &e.Source, &e.Label, &e.Probability,
		&e.RiskLevel, &e.Input, &e.Result, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, entry *PredictionLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO prediction_log (id, disease, source, label, probability, risk_level, input, result, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		entry.ID, entry.Disease, entry.Source, entry.Label, entry.Probability,
		entry.RiskLevel, entry.Input, entry.Result, entry.CreatedAt)
	return err
}

func (r *repoPG) List(ctx context.Context, disease string, limit, offset int) ([]*PredictionLog, int, error) {
	where := ``
	args := []interface{}{limit, offset}
	if disease != "" {
		where = ` WHERE disease = $3`
		args = append(args, disease)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+logCols+` FROM prediction_log`+where+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*PredictionLog
	for rows.Next() {
		e, err := scanLog(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	countArgs := []interface{}{}
	countWhere := ``
	if disease != "" {
		countWhere = ` WHERE disease = $1`
		countArgs = append(countArgs, disease)
	}
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM prediction_log`+countWhere, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM prediction_log WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Stats(ctx context.Context) ([]DiseaseStats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT disease,
		       COUNT(*),
		       COALESCE(AVG(probability), 0),
		       COUNT(*) FILTER (WHERE risk_level = 'high'),
		       MAX(created_at)
		FROM prediction_log
		GROUP BY disease
		ORDER BY disease`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []DiseaseStats
	for rows.Next() {
		var s DiseaseStats
		if err := rows.Scan(&s.Disease, &s.Total, &s.AvgProbability, &s.HighRisk, &s.LastPrediction); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
