package cfg

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"co2-forecast/internal/common"
	"co2-forecast/internal/features"
)

type Settings struct {
	Port           int
	MetricsPort    int
	FrontendURL    string
	RequestTimeout time.Duration
	DataPath       string
	DatabaseURL    string
	LogLevel       string
	LogFormat      string

	NSamples       int
	Seed           uint64
	NEstimators    int
	TestSize       float64
	CVFolds        int
	BackgroundSize int

	LIMESamples     int
	LIMENumFeatures int
}

type ConfigFile struct {
	Server struct {
		Port           int    `yaml:"port"`
		MetricsPort    int    `yaml:"metricsPort"`
		FrontendURL    string `yaml:"frontendURL"`
		RequestTimeout string `yaml:"requestTimeout"`
	} `yaml:"server"`

	Storage struct {
		DataPath    string `yaml:"dataPath"`
		DatabaseURL string `yaml:"databaseURL"`
	} `yaml:"storage"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Training struct {
		NSamples       int     `yaml:"nSamples"`
		Seed           uint64  `yaml:"seed"`
		NEstimators    int     `yaml:"nEstimators"`
		TestSize       float64 `yaml:"testSize"`
		CVFolds        int     `yaml:"cvFolds"`
		BackgroundSize int     `yaml:"backgroundSize"`
	} `yaml:"training"`

	Explain struct {
		LIMESamples     int `yaml:"limeSamples"`
		LIMENumFeatures int `yaml:"limeNumFeatures"`
	} `yaml:"explain"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	requestTimeout, err := time.ParseDuration(config.Server.RequestTimeout)
	if err != nil {
		requestTimeout = common.DefaultRequestTimeout
	}

	// Environment variables override file values
	settings := Settings{
		Port:           getIntFromEnvOrConfig(common.EnvPort, config.Server.Port, common.DefaultPort),
		MetricsPort:    getIntFromEnvOrConfig(common.EnvMetricsPort, config.Server.MetricsPort, common.DefaultMetricsPort),
		FrontendURL:    getEnvOrDefault(common.EnvFrontendURL, config.Server.FrontendURL),
		RequestTimeout: getDurationOrDefault(common.EnvRequestTimeout, requestTimeout),
		DataPath:       getEnvOrDefault(common.EnvDataPath, orDefault(config.Storage.DataPath, common.DefaultDataPath)),
		DatabaseURL:    getEnvOrDefault(common.EnvDatabaseURL, config.Storage.DatabaseURL),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, orDefault(config.Logging.Level, common.DefaultLogLevel)),
		LogFormat:      getEnvOrDefault(common.EnvLogFormat, orDefault(config.Logging.Format, common.DefaultLogFormat)),

		NSamples:       getIntFromEnvOrConfig(common.EnvNSamples, config.Training.NSamples, common.DefaultNSamples),
		Seed:           getUintFromEnvOrConfig(common.EnvSeed, config.Training.Seed, common.DefaultSeed),
		NEstimators:    getIntFromEnvOrConfig(common.EnvNEstimators, config.Training.NEstimators, common.DefaultNEstimators),
		TestSize:       getFloatFromEnvOrConfig(common.EnvTestSize, config.Training.TestSize, common.DefaultTestSize),
		CVFolds:        getIntFromEnvOrConfig(common.EnvCVFolds, config.Training.CVFolds, common.DefaultCVFolds),
		BackgroundSize: getIntFromEnvOrConfig(common.EnvBackgroundSize, config.Training.BackgroundSize, common.DefaultBackgroundSize),

		LIMESamples:     getIntFromEnvOrConfig(common.EnvLIMESamples, config.Explain.LIMESamples, common.DefaultLIMESamples),
		LIMENumFeatures: getIntFromEnvOrConfig(common.EnvLIMENumFeatures, config.Explain.LIMENumFeatures, common.DefaultLIMENumFeatures),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		Port:           getIntOrDefault(common.EnvPort, common.DefaultPort),
		MetricsPort:    getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		FrontendURL:    os.Getenv(common.EnvFrontendURL), // optional
		RequestTimeout: getDurationOrDefault(common.EnvRequestTimeout, common.DefaultRequestTimeout),
		DataPath:       getEnvOrDefault(common.EnvDataPath, common.DefaultDataPath),
		DatabaseURL:    os.Getenv(common.EnvDatabaseURL), // optional
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:      getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),

		NSamples:       getIntOrDefault(common.EnvNSamples, common.DefaultNSamples),
		Seed:           getUintOrDefault(common.EnvSeed, common.DefaultSeed),
		NEstimators:    getIntOrDefault(common.EnvNEstimators, common.DefaultNEstimators),
		TestSize:       getFloatOrDefault(common.EnvTestSize, common.DefaultTestSize),
		CVFolds:        getIntOrDefault(common.EnvCVFolds, common.DefaultCVFolds),
		BackgroundSize: getIntOrDefault(common.EnvBackgroundSize, common.DefaultBackgroundSize),

		LIMESamples:     getIntOrDefault(common.EnvLIMESamples, common.DefaultLIMESamples),
		LIMENumFeatures: getIntOrDefault(common.EnvLIMENumFeatures, common.DefaultLIMENumFeatures),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getUintOrDefault(key string, defaultValue uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if u, err := strconv.ParseUint(v, 10, 64); err == nil {
			return u
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if configValue != 0 {
		defaultValue = configValue
	}
	return getIntOrDefault(key, defaultValue)
}

func getUintFromEnvOrConfig(key string, configValue, defaultValue uint64) uint64 {
	if configValue != 0 {
		defaultValue = configValue
	}
	return getUintOrDefault(key, defaultValue)
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if configValue != 0 {
		defaultValue = configValue
	}
	return getFloatOrDefault(key, defaultValue)
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	// Validate ports
	if settings.Port < common.MinPort || settings.Port > common.MaxPort {
		return fmt.Errorf("port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.Port)
	}
	if settings.MetricsPort != 0 {
		if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
			return fmt.Errorf("metrics port must be 0 or between %d and %d, got %d", common.MinPort, common.MaxPort, settings.MetricsPort)
		}
		if settings.MetricsPort == settings.Port {
			return fmt.Errorf("metrics port must differ from the API port %d", settings.Port)
		}
	}

	if settings.RequestTimeout < common.MinRequestTimeout || settings.RequestTimeout > common.MaxRequestTimeout {
		return fmt.Errorf("request timeout must be between %v and %v, got %v", common.MinRequestTimeout, common.MaxRequestTimeout, settings.RequestTimeout)
	}

	if settings.FrontendURL != "" {
		u, err := url.Parse(settings.FrontendURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || strings.Trim(u.Path, "/") != "" {
			return fmt.Errorf("frontend URL must be an http(s) origin, got %q", settings.FrontendURL)
		}
	}

	// Validate storage
	if strings.TrimSpace(settings.DataPath) == "" {
		return fmt.Errorf("data path cannot be empty")
	}

	// Validate logging
	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", settings.LogLevel, err)
	}
	if settings.LogFormat != "json" && settings.LogFormat != "console" {
		return fmt.Errorf("log format must be json or console, got %q", settings.LogFormat)
	}

	// Validate training parameters
	if settings.NSamples < common.MinNSamples || settings.NSamples > common.MaxNSamples {
		return fmt.Errorf("n_samples must be between %d and %d, got %d", common.MinNSamples, common.MaxNSamples, settings.NSamples)
	}
	if settings.NEstimators < 1 || settings.NEstimators > common.MaxNEstimators {
		return fmt.Errorf("n_estimators must be between 1 and %d, got %d", common.MaxNEstimators, settings.NEstimators)
	}
	if settings.TestSize <= 0 || settings.TestSize > 0.5 {
		return fmt.Errorf("test size must be in (0, 0.5], got %f", settings.TestSize)
	}
	if settings.CVFolds < common.MinCVFolds || settings.CVFolds > common.MaxCVFolds {
		return fmt.Errorf("cv folds must be between %d and %d, got %d", common.MinCVFolds, common.MaxCVFolds, settings.CVFolds)
	}
	if settings.BackgroundSize < 1 || settings.BackgroundSize > common.MaxBackgroundSize {
		return fmt.Errorf("background size must be between 1 and %d, got %d", common.MaxBackgroundSize, settings.BackgroundSize)
	}

	// Validate explainer parameters
	if settings.LIMESamples < common.MinLIMESamples || settings.LIMESamples > common.MaxLIMESamples {
		return fmt.Errorf("LIME samples must be between %d and %d, got %d", common.MinLIMESamples, common.MaxLIMESamples, settings.LIMESamples)
	}
	if settings.LIMENumFeatures < 1 || settings.LIMENumFeatures > features.NumFeatures {
		return fmt.Errorf("LIME num features must be between 1 and %d, got %d", features.NumFeatures, settings.LIMENumFeatures)
	}

	return nil
}
