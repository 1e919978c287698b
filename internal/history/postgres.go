package history

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"co2-forecast/internal/features"
	"co2-forecast/internal/schema"
)

const createPredictionLogs = `
	CREATE TABLE IF NOT EXISTS prediction_logs (
		id          UUID PRIMARY KEY,
		model       TEXT NOT NULL,
		features    JSONB NOT NULL,
		prediction  DOUBLE PRECISION,
		created_at  TIMESTAMPTZ NOT NULL
	)
`

// PostgresRecorder stores prediction records in the prediction_logs table.
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

// NewPostgresRecorder wraps an open pool.
func NewPostgresRecorder(pool *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{pool: pool}
}

// Connect opens a pool for databaseURL and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: failed to connect: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the prediction_logs table if it does not exist.
func (r *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createPredictionLogs); err != nil {
		return fmt.Errorf("postgres: failed to create prediction_logs: %w", err)
	}
	return nil
}

// Save persists a prediction record. A non-finite prediction is stored as NULL.
func (r *PostgresRecorder) Save(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO prediction_logs (id, model, features, prediction, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	payload, err := json.Marshal(rec.Features)
	if err != nil {
		return fmt.Errorf("postgres: failed to encode features: %w", err)
	}
	var prediction *float64
	if rec.Prediction.Finite() {
		v := rec.Prediction.Value()
		prediction = &v
	}

	_, err = r.pool.Exec(ctx, query, rec.ID, rec.Model, payload, prediction, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to save prediction log: %w", err)
	}
	return nil
}

// Recent returns the newest records first.
func (r *PostgresRecorder) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id, model, features, prediction, created_at
		FROM prediction_logs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query prediction logs: %w", err)
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		var (
			id         uuid.UUID
			model      string
			payload    []byte
			prediction *float64
			createdAt  time.Time
		)
		if err := rows.Scan(&id, &model, &payload, &prediction, &createdAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan prediction log: %w", err)
		}
		var raw features.Raw
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, fmt.Errorf("postgres: failed to decode features: %w", err)
		}
		rec := Record{ID: id, Model: model, Features: raw, Prediction: schema.Float(math.NaN()), CreatedAt: createdAt}
		if prediction != nil {
			rec.Prediction = schema.Float(*prediction)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read prediction logs: %w", err)
	}
	return results, nil
}

// Health checks database connectivity.
func (r *PostgresRecorder) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
