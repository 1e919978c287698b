// Package metrics provides Prometheus metrics collection for the CO2 forecasting service.
// It defines the operational metrics exposed on the dedicated metrics port: HTTP traffic,
// predictions and explanation latency, training runs and the quality scores of the
// loaded models.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "co2"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec   // Requests by method, route and status
	HTTPDuration *prometheus.HistogramVec // Request latency by method and route

	// Inference metrics
	Predictions        *prometheus.CounterVec   // Predictions served by model
	ExplanationLatency *prometheus.HistogramVec // Local explanation latency by method
	HistoryErrors      prometheus.Counter       // Failed prediction history writes

	// Training and artifact metrics
	TrainingRuns     prometheus.Counter   // Training runs started
	TrainingDuration prometheus.Histogram // Training run duration
	ArtifactLoads    prometheus.Counter   // Artifact sets loaded into memory
	ModelScore       *prometheus.GaugeVec // Evaluation scores of the loaded models
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of predictions served",
		}, []string{"model"}),
		ExplanationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "explanation_latency_seconds",
			Help:      "Local explanation latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method"}),
		HistoryErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_errors_total",
			Help:      "Total number of failed prediction history writes",
		}),
		TrainingRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_runs_total",
			Help:      "Total number of training runs started",
		}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Duration of training runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		ArtifactLoads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_loads_total",
			Help:      "Total number of artifact sets loaded",
		}),
		ModelScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_score",
			Help:      "Evaluation score of the loaded model on the held-out test partition",
		}, []string{"model", "metric"}),
	}
}

// TrainingRunsInc counts a started training run.
func (m *Metrics) TrainingRunsInc() {
	m.TrainingRuns.Inc()
}

// TrainingDurationObserve records the duration of a finished run.
func (m *Metrics) TrainingDurationObserve(seconds float64) {
	m.TrainingDuration.Observe(seconds)
}

// ArtifactLoadsInc counts an artifact set brought into memory.
func (m *Metrics) ArtifactLoadsInc() {
	m.ArtifactLoads.Inc()
}

// ModelScoreSet publishes one evaluation score.
func (m *Metrics) ModelScoreSet(model, metric string, value float64) {
	m.ModelScore.WithLabelValues(model, metric).Set(value)
}
