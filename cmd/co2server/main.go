package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"co2-forecast/internal/api"
	"co2-forecast/internal/artifacts"
	"co2-forecast/internal/cfg"
	"co2-forecast/internal/history"
	"co2-forecast/internal/metrics"
	"co2-forecast/internal/storage"
	"co2-forecast/internal/training"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to read .env file")
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	log.Logger = c.Logger(os.Stderr)

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", c.DataPath).Msg("storage initialization failed")
	}
	defer store.Close()

	recorder, closeRecorder := initializeRecorder(ctx, c, store)
	defer closeRecorder()

	m := metrics.New()
	cache := artifacts.New(store, training.New(c.TrainingConfig()), c.ArtifactOptions(), m)

	start := time.Now()
	if err := cache.EnsureReady(ctx); err != nil {
		log.Fatal().Err(err).Msg("artifact initialization failed")
	}
	log.Info().
		Dur("duration", time.Since(start)).
		Int64("training_runs", cache.TrainingRuns()).
		Msg("Model artifacts ready")

	if c.MetricsPort != 0 {
		startMetricsServer(ctx, c.MetricsPort)
	}

	h := api.NewHandler(cache, recorder, metrics.NewWrapper(m), c.RequestTimeout)
	app := api.NewApp(h, api.Config{
		AllowOrigins:   c.CORSOrigins(),
		RequestTimeout: c.RequestTimeout,
		AccessLog:      true,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", c.Port)
		log.Info().Str("addr", addr).Msg("API server listening")
		errCh <- app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("API server failed")
		}
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Error().Err(err).Msg("failed to shutdown API server")
	}
	h.Wait()
	log.Info().Msg("Shutdown complete")
}

// initializeRecorder picks the prediction log: Postgres when DATABASE_URL is set, the
// embedded store otherwise.
func initializeRecorder(ctx context.Context, c cfg.Settings, store *storage.Store) (history.Recorder, func()) {
	if c.DatabaseURL == "" {
		return store, func() {}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := history.Connect(connectCtx, c.DatabaseURL)
	if err != nil {
		log.Warn().Err(err).Msg("postgres unavailable, recording predictions in the local store")
		return store, func() {}
	}
	recorder := history.NewPostgresRecorder(pool)
	if err := recorder.EnsureSchema(connectCtx); err != nil {
		log.Warn().Err(err).Msg("postgres schema setup failed, recording predictions in the local store")
		pool.Close()
		return store, func() {}
	}
	log.Info().Msg("Recording predictions in postgres")
	return recorder, pool.Close
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to shutdown metrics server")
		}
	}()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}
