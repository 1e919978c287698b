// Package training fits the primary random forest and the linear baseline on one shared
// train/test split and derives everything the serving path persists: metrics,
// the training partition and the global attribution summary.
package training

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"co2-forecast/internal/common"
	"co2-forecast/internal/dataset"
	"co2-forecast/internal/explain"
	"co2-forecast/internal/features"
	"co2-forecast/internal/ml"
)

// Config holds the training parameters.
type Config struct {
	NSamples       int
	Seed           uint64
	NEstimators    int
	TestSize       float64
	CVFolds        int
	BackgroundSize int
	// Workers bounds concurrent tree fitting; 0 uses GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the production training parameters.
func DefaultConfig() Config {
	return Config{
		NSamples:       common.DefaultNSamples,
		Seed:           common.DefaultSeed,
		NEstimators:    common.DefaultNEstimators,
		TestSize:       common.DefaultTestSize,
		CVFolds:        common.DefaultCVFolds,
		BackgroundSize: common.DefaultBackgroundSize,
	}
}

// Validate rejects parameters that cannot produce a model.
func (c Config) Validate() error {
	switch {
	case c.NSamples < 2:
		return fmt.Errorf("training: n_samples must be >= 2, got %d", c.NSamples)
	case c.NEstimators < 1:
		return fmt.Errorf("training: n_estimators must be >= 1, got %d", c.NEstimators)
	case c.TestSize <= 0 || c.TestSize >= 1:
		return fmt.Errorf("training: test_size must be in (0, 1), got %v", c.TestSize)
	case c.CVFolds < 2:
		return fmt.Errorf("training: cv_folds must be >= 2, got %d", c.CVFolds)
	case c.BackgroundSize < 1:
		return fmt.Errorf("training: background_size must be >= 1, got %d", c.BackgroundSize)
	}
	return nil
}

// Result is the complete output of one training run.
type Result struct {
	Primary         *ml.Forest
	Metrics         ml.Metrics
	Train           dataset.Partition
	Global          explain.Global
	Baseline        *ml.Linear
	BaselineMetrics ml.Metrics

	// Test is the held-out partition both models were scored on. It is not persisted.
	Test dataset.Partition
}

// Pipeline runs training end to end.
type Pipeline struct {
	cfg Config
}

// New returns a pipeline for cfg.
func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Config returns the pipeline parameters.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Train generates the dataset and fits both models. It returns either a complete Result
// or an error, never a partial result.
func (p *Pipeline) Train(ctx context.Context) (*Result, error) {
	cfg := p.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	log.Info().
		Int("samples", cfg.NSamples).
		Int("estimators", cfg.NEstimators).
		Uint64("seed", cfg.Seed).
		Msg("Starting training run")

	ds, err := dataset.Generate(cfg.NSamples, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("generate dataset: %w", err)
	}
	train, test, err := dataset.Split(ds, cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}

	foldMAE, err := p.crossValidate(ctx, train)
	if err != nil {
		return nil, err
	}

	forest, err := ml.FitForest(ctx, train.X, train.Y, p.forestParams(cfg.Seed))
	if err != nil {
		return nil, fmt.Errorf("fit random forest: %w", err)
	}
	metrics := ml.Evaluate(forest, test.X, test.Y).WithCrossValidation(foldMAE)
	log.Info().
		Float64("r2", metrics.R2).
		Float64("rmse", metrics.RMSE).
		Float64("mae", metrics.MAE).
		Float64("cv_mae_mean", metrics.CVMAEMean).
		Float64("cv_mae_std", metrics.CVMAEStd).
		Msg("Random forest evaluated")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	background := Background(train, cfg.BackgroundSize, cfg.Seed)
	shap, err := explain.NewTreeSHAP(forest, background, features.Names)
	if err != nil {
		return nil, fmt.Errorf("build tree explainer: %w", err)
	}
	global, err := explain.ComputeGlobal(ctx, shap, forest, background, features.Names)
	if err != nil {
		return nil, fmt.Errorf("global attribution: %w", err)
	}

	baseline, err := ml.FitLinear(train.X, train.Y, features.Names)
	if err != nil {
		return nil, fmt.Errorf("fit linear baseline: %w", err)
	}
	baselineMetrics := ml.Evaluate(baseline, test.X, test.Y)
	log.Info().
		Float64("r2", baselineMetrics.R2).
		Float64("rmse", baselineMetrics.RMSE).
		Float64("mae", baselineMetrics.MAE).
		Msg("Linear baseline evaluated")

	log.Info().Dur("duration", time.Since(start)).Msg("Training run completed")
	return &Result{
		Primary:         forest,
		Metrics:         metrics,
		Train:           train,
		Global:          global,
		Baseline:        baseline,
		BaselineMetrics: baselineMetrics,
		Test:            test,
	}, nil
}

// crossValidate scores independently seeded forests on k folds of the training
// partition and returns the per-fold MAE.
func (p *Pipeline) crossValidate(ctx context.Context, train dataset.Partition) ([]float64, error) {
	folds, err := dataset.KFold(train.Len(), p.cfg.CVFolds, p.cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("k-fold: %w", err)
	}
	scores := make([]float64, len(folds))
	for i, fold := range folds {
		tr, val := train.Rows(fold.Train), train.Rows(fold.Validation)
		model, err := ml.FitForest(ctx, tr.X, tr.Y, p.forestParams(p.cfg.Seed+uint64(i)+1))
		if err != nil {
			return nil, fmt.Errorf("cross-validation fold %d: %w", i, err)
		}
		scores[i] = ml.MAE(val.Y, ml.PredictAll(model, val.X))
		log.Debug().Int("fold", i).Float64("mae", scores[i]).Msg("Cross-validation fold scored")
	}
	return scores, nil
}

func (p *Pipeline) forestParams(seed uint64) ml.ForestParams {
	return ml.ForestParams{
		NEstimators: p.cfg.NEstimators,
		Seed:        seed,
		Workers:     p.cfg.Workers,
	}
}

// Background selects the reference rows for tree attributions. It is deterministic in
// (train, size, seed), so the serving path can rebuild the sample used at training time.
func Background(train dataset.Partition, size int, seed uint64) [][]float64 {
	pos := dataset.SampleRows(train.Len(), size, seed)
	rows := make([][]float64, len(pos))
	for i, j := range pos {
		rows[i] = train.X[j]
	}
	return rows
}
