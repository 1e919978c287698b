package cfg

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"co2-forecast/internal/artifacts"
	"co2-forecast/internal/common"
	"co2-forecast/internal/explain"
	"co2-forecast/internal/training"
)

// TrainingConfig returns the pipeline parameters.
func (s Settings) TrainingConfig() training.Config {
	return training.Config{
		NSamples:       s.NSamples,
		Seed:           s.Seed,
		NEstimators:    s.NEstimators,
		TestSize:       s.TestSize,
		CVFolds:        s.CVFolds,
		BackgroundSize: s.BackgroundSize,
	}
}

// ArtifactOptions returns the explainer options used when artifacts are loaded. Seed and
// background size are shared with training.
func (s Settings) ArtifactOptions() artifacts.Options {
	return artifacts.Options{
		Seed:           s.Seed,
		BackgroundSize: s.BackgroundSize,
		LIME: explain.LIMEConfig{
			NumSamples:  s.LIMESamples,
			NumFeatures: s.LIMENumFeatures,
			Seed:        s.Seed,
		},
	}
}

// CORSOrigins lists the allowed cross-origin URLs: the local development origins plus
// the configured frontend, if any.
func (s Settings) CORSOrigins() []string {
	origins := append([]string(nil), common.DevOrigins...)
	if s.FrontendURL != "" {
		origins = append(origins, strings.TrimRight(s.FrontendURL, "/"))
	}
	return origins
}

// Logger builds the process logger from LogLevel and LogFormat. Console output is meant
// for local development; json is the default.
func (s Settings) Logger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if s.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
