package cfg

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.Port != 8000 {
					t.Errorf("expected default Port 8000, got %d", settings.Port)
				}
				if settings.MetricsPort != 9090 {
					t.Errorf("expected default MetricsPort 9090, got %d", settings.MetricsPort)
				}
				if settings.DataPath != "artifacts" {
					t.Errorf("expected default DataPath 'artifacts', got %s", settings.DataPath)
				}
				if settings.RequestTimeout != 30*time.Second {
					t.Errorf("expected default RequestTimeout 30s, got %v", settings.RequestTimeout)
				}
				if settings.NSamples != 1000 || settings.Seed != 42 || settings.NEstimators != 200 {
					t.Errorf("unexpected training defaults: %+v", settings)
				}
				if settings.TestSize != 0.2 || settings.CVFolds != 5 || settings.BackgroundSize != 300 {
					t.Errorf("unexpected split defaults: %+v", settings)
				}
				if settings.LIMESamples != 5000 || settings.LIMENumFeatures != 10 {
					t.Errorf("unexpected LIME defaults: %+v", settings)
				}
				if settings.FrontendURL != "" || settings.DatabaseURL != "" {
					t.Errorf("expected optional URLs to be empty, got %q %q", settings.FrontendURL, settings.DatabaseURL)
				}
			},
		},
		{
			name: "custom settings",
			envVars: map[string]string{
				"PORT":            "8080",
				"METRICS_PORT":    "0",
				"FRONTEND_URL":    "https://co2.example.org",
				"DATA_PATH":       "/var/lib/co2",
				"LOG_LEVEL":       "debug",
				"LOG_FORMAT":      "console",
				"REQUEST_TIMEOUT": "45s",
				"N_SAMPLES":       "2000",
				"SEED":            "7",
				"N_ESTIMATORS":    "50",
				"TEST_SIZE":       "0.25",
				"CV_FOLDS":        "3",
				"BACKGROUND_SIZE": "100",
				"LIME_SAMPLES":    "1000",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.Port != 8080 {
					t.Errorf("expected Port 8080, got %d", settings.Port)
				}
				if settings.MetricsPort != 0 {
					t.Errorf("expected disabled MetricsPort, got %d", settings.MetricsPort)
				}
				if settings.FrontendURL != "https://co2.example.org" {
					t.Errorf("expected FrontendURL, got %s", settings.FrontendURL)
				}
				if settings.LogFormat != "console" {
					t.Errorf("expected console log format, got %s", settings.LogFormat)
				}
				if settings.RequestTimeout != 45*time.Second {
					t.Errorf("expected RequestTimeout 45s, got %v", settings.RequestTimeout)
				}
				if settings.Seed != 7 || settings.NEstimators != 50 || settings.TestSize != 0.25 {
					t.Errorf("unexpected training settings: %+v", settings)
				}
				if settings.LIMESamples != 1000 {
					t.Errorf("expected LIMESamples 1000, got %d", settings.LIMESamples)
				}
			},
		},
		{
			name: "unparseable values fall back to defaults",
			envVars: map[string]string{
				"PORT": "not-a-port",
				"SEED": "-3",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.Port != 8000 {
					t.Errorf("expected default Port, got %d", settings.Port)
				}
				if settings.Seed != 42 {
					t.Errorf("expected default Seed, got %d", settings.Seed)
				}
			},
		},
		{
			name:    "invalid log level",
			envVars: map[string]string{"LOG_LEVEL": "chatty"},
			wantErr: true,
		},
		{
			name:    "too few samples",
			envVars: map[string]string{"N_SAMPLES": "10"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear all environment variables first
			clearTestEnv(t)

			// Set test environment variables
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := loadFromEnv()

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	tests := []struct {
		name         string
		yamlContent  string
		envOverrides map[string]string
		wantErr      bool
		validate     func(t *testing.T, settings Settings)
	}{
		{
			name: "valid YAML config",
			yamlContent: `
server:
  port: 8100
  metricsPort: 9100
  frontendURL: "https://dashboard.example.org"
  requestTimeout: "20s"

storage:
  dataPath: "/custom/data"

logging:
  level: "warn"

training:
  nSamples: 500
  seed: 11
  nEstimators: 80
  testSize: 0.3
  cvFolds: 4
  backgroundSize: 150

explain:
  limeSamples: 2000
  limeNumFeatures: 6
`,
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.Port != 8100 || settings.MetricsPort != 9100 {
					t.Errorf("expected ports 8100/9100, got %d/%d", settings.Port, settings.MetricsPort)
				}
				if settings.FrontendURL != "https://dashboard.example.org" {
					t.Errorf("expected FrontendURL from file, got %s", settings.FrontendURL)
				}
				if settings.RequestTimeout != 20*time.Second {
					t.Errorf("expected RequestTimeout 20s, got %v", settings.RequestTimeout)
				}
				if settings.DataPath != "/custom/data" {
					t.Errorf("expected DataPath '/custom/data', got %s", settings.DataPath)
				}
				if settings.LogLevel != "warn" || settings.LogFormat != "json" {
					t.Errorf("expected warn/json logging, got %s/%s", settings.LogLevel, settings.LogFormat)
				}
				if settings.NSamples != 500 || settings.Seed != 11 || settings.CVFolds != 4 {
					t.Errorf("unexpected training settings: %+v", settings)
				}
				if settings.LIMENumFeatures != 6 {
					t.Errorf("expected LIMENumFeatures 6, got %d", settings.LIMENumFeatures)
				}
			},
		},
		{
			name: "environment overrides file",
			yamlContent: `
server:
  port: 8100
training:
  nEstimators: 80
`,
			envOverrides: map[string]string{
				"PORT":         "8200",
				"N_ESTIMATORS": "120",
				"DATABASE_URL": "postgres://localhost/co2",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.Port != 8200 {
					t.Errorf("expected Port 8200 from env, got %d", settings.Port)
				}
				if settings.NEstimators != 120 {
					t.Errorf("expected NEstimators 120 from env, got %d", settings.NEstimators)
				}
				if settings.DatabaseURL != "postgres://localhost/co2" {
					t.Errorf("expected DatabaseURL from env, got %s", settings.DatabaseURL)
				}
				// Unset values fall back to defaults
				if settings.CVFolds != 5 || settings.DataPath != "artifacts" {
					t.Errorf("expected defaults for missing values, got %+v", settings)
				}
			},
		},
		{
			name:        "invalid YAML",
			yamlContent: "server: [port",
			wantErr:     true,
		},
		{
			name: "invalid values",
			yamlContent: `
training:
  testSize: 0.9
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)
			for key, value := range tt.envOverrides {
				t.Setenv(key, value)
			}

			configPath := filepath.Join(t.TempDir(), "config.yaml")
			err := os.WriteFile(configPath, []byte(tt.yamlContent), 0o644)
			if err != nil {
				t.Fatalf("failed to write test config file: %v", err)
			}

			settings, err := loadFromYAML(configPath)

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML_MissingFile(t *testing.T) {
	clearTestEnv(t)
	_, err := loadFromYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		yamlContent string
		envVars     map[string]string
		validate    func(t *testing.T, settings Settings)
	}{
		{
			name:    "load from env when no config file",
			envVars: map[string]string{"PORT": "8300"},
			validate: func(t *testing.T, settings Settings) {
				if settings.Port != 8300 {
					t.Errorf("expected Port 8300, got %d", settings.Port)
				}
			},
		},
		{
			name:       "load from YAML when config file specified",
			configFile: "config.yaml",
			yamlContent: `
server:
  port: 8400
`,
			validate: func(t *testing.T, settings Settings) {
				if settings.Port != 8400 {
					t.Errorf("expected Port 8400, got %d", settings.Port)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			if tt.configFile != "" {
				configPath := filepath.Join(t.TempDir(), tt.configFile)
				if err := os.WriteFile(configPath, []byte(tt.yamlContent), 0o644); err != nil {
					t.Fatalf("failed to write test config file: %v", err)
				}
				t.Setenv("CONFIG_FILE", configPath)
			}

			settings, err := Load()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.validate(t, settings)
		})
	}
}

func TestSettings_Derived(t *testing.T) {
	settings := createValidSettings()
	settings.FrontendURL = "https://co2.example.org"

	tc := settings.TrainingConfig()
	if tc.NSamples != settings.NSamples || tc.Seed != settings.Seed || tc.CVFolds != settings.CVFolds {
		t.Errorf("training config does not mirror settings: %+v", tc)
	}
	if err := tc.Validate(); err != nil {
		t.Errorf("training config from valid settings is invalid: %v", err)
	}

	opts := settings.ArtifactOptions()
	if opts.Seed != settings.Seed || opts.BackgroundSize != settings.BackgroundSize {
		t.Errorf("artifact options must share seed and background size: %+v", opts)
	}
	if opts.LIME.NumSamples != settings.LIMESamples || opts.LIME.NumFeatures != settings.LIMENumFeatures {
		t.Errorf("unexpected LIME options: %+v", opts.LIME)
	}

	origins := settings.CORSOrigins()
	if len(origins) != 5 || origins[4] != "https://co2.example.org" {
		t.Errorf("expected dev origins plus frontend, got %v", origins)
	}

	settings.FrontendURL = ""
	if got := settings.CORSOrigins(); len(got) != 4 {
		t.Errorf("expected only dev origins, got %v", got)
	}
}

func TestSettings_Logger(t *testing.T) {
	settings := createValidSettings()
	settings.LogLevel = "warn"

	var buf bytes.Buffer
	logger := settings.Logger(&buf)
	logger.Info().Msg("dropped")
	logger.Warn().Str("component", "cache").Msg("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info line must be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"component":"cache"`) || !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("expected json warn line, got %s", out)
	}

	buf.Reset()
	settings.LogFormat = "console"
	logger = settings.Logger(&buf)
	logger.Warn().Msg("console line")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("console format must not emit json: %s", buf.String())
	}
}

// clearTestEnv clears potentially conflicting environment variables
func clearTestEnv(t *testing.T) {
	envVars := []string{
		"CONFIG_FILE", "PORT", "METRICS_PORT", "DATA_PATH", "FRONTEND_URL", "DATABASE_URL",
		"LOG_LEVEL", "LOG_FORMAT", "REQUEST_TIMEOUT", "N_SAMPLES", "SEED", "N_ESTIMATORS",
		"TEST_SIZE", "CV_FOLDS", "BACKGROUND_SIZE", "LIME_SAMPLES", "LIME_NUM_FEATURES",
	}

	for _, env := range envVars {
		t.Setenv(env, "")
	}
}
