package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"co2-forecast/internal/history"
)

// Save stores a prediction record. Keys sort by creation time so the newest record is
// last in the bucket.
func (s *Store) Save(_ context.Context, rec history.Record) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction record: %w", err)
		}

		key := fmt.Sprintf("%020d_%s", rec.CreatedAt.UnixNano(), rec.ID)
		return b.Put([]byte(key), data)
	})
}

// Recent returns up to limit prediction records, newest first.
func (s *Store) Recent(_ context.Context, limit int) ([]history.Record, error) {
	var records []history.Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var rec history.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

var _ history.Recorder = (*Store)(nil)
