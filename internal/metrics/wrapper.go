package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
}

type MetricsGauge interface {
	Set(float64)
	Add(float64)
}

type MetricsHistogram interface {
	Observe(float64)
}

// MetricsWrapper provides a simple interface for the HTTP layer to use metrics
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) Predictions(model string) MetricsCounter {
	return &CounterWrapper{w.m.Predictions.WithLabelValues(model)}
}

func (w *MetricsWrapper) ExplanationLatency(method string) MetricsHistogram {
	return &HistogramWrapper{w.m.ExplanationLatency.WithLabelValues(method)}
}

func (w *MetricsWrapper) ModelScore(model, metric string) MetricsGauge {
	return &GaugeWrapper{w.m.ModelScore.WithLabelValues(model, metric)}
}

func (w *MetricsWrapper) RequestObserve(method, route string, status int, seconds float64) {
	w.m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	w.m.HTTPDuration.WithLabelValues(method, route).Observe(seconds)
}

func (w *MetricsWrapper) PredictionsInc(model string) {
	w.Predictions(model).Inc()
}

func (w *MetricsWrapper) ExplanationObserve(method string, seconds float64) {
	w.ExplanationLatency(method).Observe(seconds)
}

func (w *MetricsWrapper) HistoryErrorsInc() {
	w.m.HistoryErrors.Inc()
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}

type HistogramWrapper struct {
	h prometheus.Observer
}

func (hw *HistogramWrapper) Observe(v float64) {
	hw.h.Observe(v)
}
