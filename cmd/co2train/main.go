package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"co2-forecast/internal/artifacts"
	"co2-forecast/internal/cfg"
	"co2-forecast/internal/common"
	"co2-forecast/internal/explain"
	"co2-forecast/internal/ml"
	"co2-forecast/internal/storage"
	"co2-forecast/internal/training"
)

func main() {
	var (
		dataPath = flag.String("data", "", "artifact directory (overrides DATA_PATH)")
		force    = flag.Bool("force", false, "retrain even if artifacts are present")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to read .env file")
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if *dataPath != "" {
		c.DataPath = *dataPath
	}
	log.Logger = c.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", c.DataPath).Msg("storage initialization failed")
	}
	defer store.Close()

	if *force {
		for _, key := range common.ArtifactKeys {
			if err := store.DeleteArtifact(key); err != nil {
				log.Fatal().Err(err).Str("artifact", key).Msg("failed to clear artifact")
			}
		}
		log.Info().Msg("Cleared persisted artifacts")
	}

	cache := artifacts.New(store, training.New(c.TrainingConfig()), c.ArtifactOptions(), nil)
	primary, err := cache.Primary(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("training failed")
	}
	baseline, err := cache.Baseline(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("training failed")
	}

	if cache.TrainingRuns() == 0 {
		fmt.Printf("Artifacts already present in %s (use -force to retrain)\n\n", store.Path())
	} else {
		fmt.Printf("Trained and persisted artifacts to %s\n\n", store.Path())
	}
	printReport(primary.Metrics, baseline.Metrics, primary.Global)
}

func printReport(primary, baseline ml.Metrics, global explain.Global) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tR2\tRMSE\tMAE\tCV MAE\tCV STD")
	for _, row := range []struct {
		name string
		m    ml.Metrics
	}{
		{common.ModelPrimary, primary},
		{common.ModelBaseline, baseline},
	} {
		fmt.Fprintf(w, "%s\t%.4f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			row.name, row.m.R2, row.m.RMSE, row.m.MAE, row.m.CVMAEMean, row.m.CVMAEStd)
	}
	w.Flush()

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tMEAN |SHAP|\tRF IMPORTANCE")
	for _, item := range global.Ranked() {
		fmt.Fprintf(w, "%s\t%.3f\t%.4f\n", item.Feature, item.MeanAbsSHAP, item.RFImportance)
	}
	w.Flush()
}
