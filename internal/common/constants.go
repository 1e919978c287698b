package common

import "time"

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvPort            = "PORT"
	EnvMetricsPort     = "METRICS_PORT"
	EnvDataPath        = "DATA_PATH"
	EnvFrontendURL     = "FRONTEND_URL"
	EnvDatabaseURL     = "DATABASE_URL"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFormat       = "LOG_FORMAT"
	EnvRequestTimeout  = "REQUEST_TIMEOUT"
	EnvNSamples        = "N_SAMPLES"
	EnvSeed            = "SEED"
	EnvNEstimators     = "N_ESTIMATORS"
	EnvTestSize        = "TEST_SIZE"
	EnvCVFolds         = "CV_FOLDS"
	EnvBackgroundSize  = "BACKGROUND_SIZE"
	EnvLIMESamples     = "LIME_SAMPLES"
	EnvLIMENumFeatures = "LIME_NUM_FEATURES"
)

// Configuration defaults
const (
	DefaultPort            = 8000
	DefaultMetricsPort     = 9090
	DefaultDataPath        = "artifacts"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultRequestTimeout  = 30 * time.Second
	DefaultNSamples        = 1000
	DefaultSeed            = 42
	DefaultNEstimators     = 200
	DefaultTestSize        = 0.2
	DefaultCVFolds         = 5
	DefaultBackgroundSize  = 300
	DefaultLIMESamples     = 5000
	DefaultLIMENumFeatures = 10
	DefaultTrendLimit      = 100
	DefaultHistoryLimit    = 20
	MaxHistoryLimit        = 500
)

// Origins always allowed for local frontend development.
var DevOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// Persisted artifact keys. All six must be present for the store to count as ready.
const (
	ArtifactModel           = "rf_model"
	ArtifactTrainData       = "train_data"
	ArtifactMetrics         = "metrics"
	ArtifactGlobalSHAP      = "global_shap"
	ArtifactBaselineModel   = "lr_model"
	ArtifactBaselineMetrics = "lr_metrics"
)

// ArtifactKeys lists every required artifact in write order.
var ArtifactKeys = []string{
	ArtifactModel,
	ArtifactTrainData,
	ArtifactMetrics,
	ArtifactGlobalSHAP,
	ArtifactBaselineModel,
	ArtifactBaselineMetrics,
}

// Model labels used in logs, metrics and the prediction history
const (
	ModelPrimary  = "random_forest"
	ModelBaseline = "linear_regression"
)

// Validation constants
const (
	MinPort           = 1024
	MaxPort           = 65535
	MinNSamples       = 50
	MaxNSamples       = 1_000_000
	MaxNEstimators    = 2000
	MinCVFolds        = 2
	MaxCVFolds        = 20
	MaxBackgroundSize = 10_000
	MinLIMESamples    = 100
	MaxLIMESamples    = 100_000
	MinRequestTimeout = time.Second
	MaxRequestTimeout = 10 * time.Minute
)
