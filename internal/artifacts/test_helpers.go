package artifacts

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu           sync.Mutex
	trainingRuns int
	durations    []float64
	loads        int
	scores       map[string]float64
}

func (m *MockMetrics) TrainingRunsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainingRuns++
}

func (m *MockMetrics) TrainingDurationObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations = append(m.durations, v)
}

func (m *MockMetrics) ArtifactLoadsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
}

func (m *MockMetrics) ModelScoreSet(model, metric string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scores == nil {
		m.scores = make(map[string]float64)
	}
	m.scores[model+"/"+metric] = v
}

// TrainingRuns returns the number of recorded training runs.
func (m *MockMetrics) TrainingRuns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trainingRuns
}

// Loads returns the number of recorded artifact loads.
func (m *MockMetrics) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// Score returns the last value set for model/metric.
func (m *MockMetrics) Score(model, metric string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.scores[model+"/"+metric]
	return v, ok
}
