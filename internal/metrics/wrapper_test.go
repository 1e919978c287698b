package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWrapper(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_CounterOperations(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	counter := wrapper.Predictions("random_forest")
	if counter == nil {
		t.Fatal("Predictions returned nil counter")
	}

	// Initial value should be 0
	initialValue := testutil.ToFloat64(metrics.Predictions.WithLabelValues("random_forest"))
	if initialValue != 0 {
		t.Errorf("Expected initial counter value 0, got %f", initialValue)
	}

	counter.Inc()
	wrapper.PredictionsInc("random_forest")
	value := testutil.ToFloat64(metrics.Predictions.WithLabelValues("random_forest"))
	if value != 2 {
		t.Errorf("Expected counter value 2, got %f", value)
	}

	// Other labels are independent
	other := testutil.ToFloat64(metrics.Predictions.WithLabelValues("linear_regression"))
	if other != 0 {
		t.Errorf("Expected untouched label to be 0, got %f", other)
	}
}

func TestMetricsWrapper_GaugeOperations(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	gauge := wrapper.ModelScore("random_forest", "r2")
	if gauge == nil {
		t.Fatal("ModelScore returned nil gauge")
	}

	gauge.Set(0.75)
	value := testutil.ToFloat64(metrics.ModelScore.WithLabelValues("random_forest", "r2"))
	if value != 0.75 {
		t.Errorf("Expected gauge value 0.75, got %f", value)
	}

	gauge.Add(0.125)
	value = testutil.ToFloat64(metrics.ModelScore.WithLabelValues("random_forest", "r2"))
	if value != 0.875 {
		t.Errorf("Expected gauge value 0.875 after add, got %f", value)
	}
}

func TestMetricsWrapper_HistogramOperations(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.ExplanationLatency("lime").Observe(0.2)
	wrapper.ExplanationObserve("tree_shap", 0.01)

	if n := testutil.CollectAndCount(metrics.ExplanationLatency); n != 2 {
		t.Errorf("Expected 2 explanation series, got %d", n)
	}
}

func TestMetricsWrapper_RequestObserve(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.RequestObserve("GET", "/health", 200, 0.001)
	wrapper.RequestObserve("GET", "/health", 200, 0.002)
	wrapper.RequestObserve("POST", "/predict", 400, 0.003)

	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "/health", "200")); v != 2 {
		t.Errorf("Expected 2 health requests, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("POST", "/predict", "400")); v != 1 {
		t.Errorf("Expected 1 rejected predict request, got %f", v)
	}
	if n := testutil.CollectAndCount(metrics.HTTPDuration); n != 2 {
		t.Errorf("Expected 2 latency series, got %d", n)
	}
}

func TestMetricsWrapper_HistoryErrors(t *testing.T) {
	metrics := NewWithRegistry(prometheus.NewRegistry())
	wrapper := NewWrapper(metrics)

	wrapper.HistoryErrorsInc()
	if v := testutil.ToFloat64(metrics.HistoryErrors); v != 1 {
		t.Errorf("Expected 1 history error, got %f", v)
	}
}
