// Package artifacts owns the process-wide trained state: it loads the persisted artifact
// set, trains and persists it when any part is missing, and serves immutable model
// bundles to concurrent readers.
//
// Lifecycle: Uninitialized -> Loading -> Ready. Initialisation is serialised so that at
// most one training run happens per process no matter how many requests trigger it; a
// failed initialisation returns to Uninitialized and is retried by the next caller.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"co2-forecast/internal/common"
	"co2-forecast/internal/dataset"
	"co2-forecast/internal/explain"
	"co2-forecast/internal/features"
	"co2-forecast/internal/ml"
	"co2-forecast/internal/storage"
	"co2-forecast/internal/training"
)

// ErrNotReady is returned by Snapshot before the cache has been initialised.
var ErrNotReady = errors.New("artifacts: not ready")

// State is the cache lifecycle stage.
type State int32

const (
	Uninitialized State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// MetricsInterface defines the metrics the cache reports.
type MetricsInterface interface {
	TrainingRunsInc()
	TrainingDurationObserve(float64)
	ArtifactLoadsInc()
	ModelScoreSet(model, metric string, value float64)
}

// Trainer produces a fresh training result.
type Trainer interface {
	Train(ctx context.Context) (*training.Result, error)
}

// Repository is the durable artifact storage.
type Repository interface {
	HasArtifacts() (bool, error)
	SaveArtifacts(set storage.Set) error
	LoadArtifacts() (storage.Set, error)
}

// Options configures the explainers rebuilt on load. Seed and BackgroundSize must match
// the training configuration so the tree explainer sees the training-time background.
type Options struct {
	Seed           uint64
	BackgroundSize int
	LIME           explain.LIMEConfig
}

// Primary is the random forest bundle.
type Primary struct {
	Model   *ml.Forest
	Train   dataset.Partition
	Metrics ml.Metrics
	Global  explain.Global
	SHAP    *explain.TreeSHAP
	LIME    *explain.LIME
}

// Explainers returns the local explainers in response order.
func (p *Primary) Explainers() []explain.LocalExplainer {
	return []explain.LocalExplainer{p.LIME, p.SHAP}
}

// Baseline is the linear regression bundle.
type Baseline struct {
	Model   *ml.Linear
	Metrics ml.Metrics
}

type snapshot struct {
	primary  *Primary
	baseline *Baseline
}

// Cache is the load-or-train-once artifact cache.
type Cache struct {
	repo    Repository
	trainer Trainer
	opts    Options
	metrics MetricsInterface

	// init serialises initialisation; a buffered channel lets waiters give up on ctx.
	init  chan struct{}
	state atomic.Int32
	snap  atomic.Pointer[snapshot]
	runs  atomic.Int64
}

// New creates a cache. metrics may be nil.
func New(repo Repository, trainer Trainer, opts Options, metrics MetricsInterface) *Cache {
	return &Cache{
		repo:    repo,
		trainer: trainer,
		opts:    opts,
		metrics: metrics,
		init:    make(chan struct{}, 1),
	}
}

// State returns the current lifecycle stage.
func (c *Cache) State() State {
	return State(c.state.Load())
}

// TrainingRuns returns how many training runs this cache has started.
func (c *Cache) TrainingRuns() int64 {
	return c.runs.Load()
}

// EnsureReady loads the artifacts, training and persisting them first if any is
// missing. It is idempotent and cheap once the cache is ready. Callers that arrive while
// another goroutine initialises wait for it; ctx only bounds that wait. The
// initialisation itself is not cancelled by the caller's deadline.
func (c *Cache) EnsureReady(ctx context.Context) error {
	if c.snap.Load() != nil {
		return nil
	}

	select {
	case c.init <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.init }()

	if c.snap.Load() != nil {
		return nil
	}

	c.setState(Loading)
	snap, err := c.load(context.WithoutCancel(ctx))
	if err != nil {
		c.setState(Uninitialized)
		log.Error().Err(err).Msg("Artifact initialisation failed")
		return err
	}
	c.snap.Store(snap)
	c.setState(Ready)
	return nil
}

// Primary returns the random forest bundle, initialising the cache if needed.
func (c *Cache) Primary(ctx context.Context) (*Primary, error) {
	if err := c.EnsureReady(ctx); err != nil {
		return nil, err
	}
	return c.snap.Load().primary, nil
}

// Baseline returns the linear baseline bundle, initialising the cache if needed.
func (c *Cache) Baseline(ctx context.Context) (*Baseline, error) {
	if err := c.EnsureReady(ctx); err != nil {
		return nil, err
	}
	return c.snap.Load().baseline, nil
}

// Loaded returns the primary bundle without initialising; ErrNotReady before that.
func (c *Cache) Loaded() (*Primary, error) {
	snap := c.snap.Load()
	if snap == nil {
		return nil, ErrNotReady
	}
	return snap.primary, nil
}

func (c *Cache) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev != s {
		log.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("Artifact cache state changed")
	}
}

func (c *Cache) load(ctx context.Context) (*snapshot, error) {
	present, err := c.repo.HasArtifacts()
	if err != nil {
		return nil, fmt.Errorf("check artifacts: %w", err)
	}

	var set storage.Set
	if present {
		set, err = c.repo.LoadArtifacts()
		if err != nil {
			return nil, fmt.Errorf("load artifacts: %w", err)
		}
		log.Info().Msg("Loaded persisted artifacts")
	} else {
		log.Info().Msg("Artifacts missing, training from scratch")
		set, err = c.trainAndPersist(ctx)
		if err != nil {
			return nil, err
		}
	}

	snap, err := c.build(set)
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.ArtifactLoadsInc()
		c.reportScores(common.ModelPrimary, set.Metrics)
		c.reportScores(common.ModelBaseline, set.BaselineMetrics)
	}
	return snap, nil
}

func (c *Cache) trainAndPersist(ctx context.Context) (storage.Set, error) {
	c.runs.Add(1)
	if c.metrics != nil {
		c.metrics.TrainingRunsInc()
	}
	start := time.Now()

	res, err := c.trainer.Train(ctx)
	if err != nil {
		return storage.Set{}, fmt.Errorf("train: %w", err)
	}
	if c.metrics != nil {
		c.metrics.TrainingDurationObserve(time.Since(start).Seconds())
	}

	set := storage.Set{
		Model:           res.Primary,
		Train:           res.Train,
		Metrics:         res.Metrics,
		Global:          res.Global,
		Baseline:        res.Baseline,
		BaselineMetrics: res.BaselineMetrics,
	}
	if err := c.repo.SaveArtifacts(set); err != nil {
		return storage.Set{}, fmt.Errorf("persist artifacts: %w", err)
	}
	log.Info().Dur("duration", time.Since(start)).Msg("Artifacts trained and persisted")
	return set, nil
}

func (c *Cache) build(set storage.Set) (*snapshot, error) {
	if err := set.Global.Validate(); err != nil {
		return nil, err
	}
	background := training.Background(set.Train, c.opts.BackgroundSize, c.opts.Seed)
	shap, err := explain.NewTreeSHAP(set.Model, background, features.Names)
	if err != nil {
		return nil, fmt.Errorf("build tree explainer: %w", err)
	}
	lime, err := explain.NewLIME(set.Model, set.Train.X, features.Names, c.opts.LIME)
	if err != nil {
		return nil, fmt.Errorf("build lime explainer: %w", err)
	}

	return &snapshot{
		primary: &Primary{
			Model:   set.Model,
			Train:   set.Train,
			Metrics: set.Metrics,
			Global:  set.Global,
			SHAP:    shap,
			LIME:    lime,
		},
		baseline: &Baseline{
			Model:   set.Baseline,
			Metrics: set.BaselineMetrics,
		},
	}, nil
}

func (c *Cache) reportScores(model string, m ml.Metrics) {
	c.metrics.ModelScoreSet(model, "r2", m.R2)
	c.metrics.ModelScoreSet(model, "rmse", m.RMSE)
	c.metrics.ModelScoreSet(model, "mae", m.MAE)
}
