// Package history records served predictions so they can be listed later.
//
// Two recorders exist: the embedded BoltDB store (storage.Store) used by default, and
// PostgresRecorder used when a database URL is configured.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"co2-forecast/internal/features"
	"co2-forecast/internal/schema"
)

// Record is one served prediction.
type Record struct {
	ID         uuid.UUID    `json:"id"`
	Model      string       `json:"model"`
	Features   features.Raw `json:"features"`
	Prediction schema.Float `json:"prediction"`
	CreatedAt  time.Time    `json:"created_at"`
}

// NewRecord stamps a prediction with a fresh id and the current time.
func NewRecord(model string, raw features.Raw, prediction float64) Record {
	return Record{
		ID:         uuid.New(),
		Model:      model,
		Features:   raw,
		Prediction: schema.Float(prediction),
		CreatedAt:  time.Now().UTC(),
	}
}

// Recorder persists and lists prediction records.
type Recorder interface {
	// Save stores one record.
	Save(ctx context.Context, rec Record) error
	// Recent returns at most limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// Nop discards records. It is used when no store is available.
type Nop struct{}

func (Nop) Save(context.Context, Record) error { return nil }

func (Nop) Recent(context.Context, int) ([]Record, error) { return nil, nil }
