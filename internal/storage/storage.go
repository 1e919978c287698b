// Package storage persists the trained artifact set and the prediction log.
// It uses BoltDB as the underlying storage engine.
//
// The six artifacts are gob-encoded and written in a single transaction, so a reader
// either sees the complete set from one training run or none of it.
package storage

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"co2-forecast/internal/common"
	"co2-forecast/internal/dataset"
	"co2-forecast/internal/explain"
	"co2-forecast/internal/ml"
)

const (
	artifactsBucket   = "artifacts"   // Bucket holding the six trained artifacts
	predictionsBucket = "predictions" // Bucket holding the prediction log

	dbFile = "co2-artifacts.db"
)

// ErrArtifactMissing is returned by LoadArtifacts when any artifact is absent.
var ErrArtifactMissing = errors.New("storage: artifact missing")

// Set is the complete output of a training run as persisted.
type Set struct {
	Model           *ml.Forest
	Train           dataset.Partition
	Metrics         ml.Metrics
	Global          explain.Global
	Baseline        *ml.Linear
	BaselineMetrics ml.Metrics
}

// Store provides persistent storage using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New opens (creating if needed) the database under dataPath and ensures its buckets.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(artifactsBucket)); err != nil {
			return fmt.Errorf("create artifacts bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.db.Path()
}

// HasArtifacts reports whether every required artifact is present.
func (s *Store) HasArtifacts() (bool, error) {
	ok := true
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(artifactsBucket))
		for _, key := range common.ArtifactKeys {
			if b.Get([]byte(key)) == nil {
				ok = false
				return nil
			}
		}
		return nil
	})
	return ok, err
}

// SaveArtifacts replaces the stored artifact set. All six values are written in one
// transaction.
func (s *Store) SaveArtifacts(set Set) error {
	if set.Model == nil || set.Baseline == nil {
		return fmt.Errorf("storage: artifact set is incomplete")
	}
	values := map[string]any{
		common.ArtifactModel:           set.Model,
		common.ArtifactTrainData:       set.Train,
		common.ArtifactMetrics:         set.Metrics,
		common.ArtifactGlobalSHAP:      set.Global,
		common.ArtifactBaselineModel:   set.Baseline,
		common.ArtifactBaselineMetrics: set.BaselineMetrics,
	}

	encoded := make(map[string][]byte, len(values))
	for _, key := range common.ArtifactKeys {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(values[key]); err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		encoded[key] = buf.Bytes()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(artifactsBucket))
		for _, key := range common.ArtifactKeys {
			if err := b.Put([]byte(key), encoded[key]); err != nil {
				return fmt.Errorf("put %s: %w", key, err)
			}
		}
		return nil
	})
}

// LoadArtifacts reads the artifact set. It returns ErrArtifactMissing naming the first
// absent key when the set is incomplete.
func (s *Store) LoadArtifacts() (Set, error) {
	var set Set
	targets := map[string]any{
		common.ArtifactModel:           &set.Model,
		common.ArtifactTrainData:       &set.Train,
		common.ArtifactMetrics:         &set.Metrics,
		common.ArtifactGlobalSHAP:      &set.Global,
		common.ArtifactBaselineModel:   &set.Baseline,
		common.ArtifactBaselineMetrics: &set.BaselineMetrics,
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(artifactsBucket))
		for _, key := range common.ArtifactKeys {
			data := b.Get([]byte(key))
			if data == nil {
				return fmt.Errorf("%w: %s", ErrArtifactMissing, key)
			}
			if err := gob.NewDecoder(bytes.NewReader(data)).Decode(targets[key]); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return Set{}, err
	}
	return set, nil
}

// DeleteArtifact removes one artifact, leaving the set incomplete.
func (s *Store) DeleteArtifact(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(artifactsBucket)).Delete([]byte(key))
	})
}
