package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"co2-forecast/internal/artifacts"
	"co2-forecast/internal/common"
	"co2-forecast/internal/explain"
	"co2-forecast/internal/features"
	"co2-forecast/internal/metrics"
	"co2-forecast/internal/schema"
	"co2-forecast/internal/storage"
	"co2-forecast/internal/training"
)

// models is trained once for the whole package.
var models *artifacts.Cache

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "co2-api-test")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	store, err := storage.New(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	trainer := training.New(training.Config{
		NSamples:       200,
		Seed:           42,
		NEstimators:    6,
		TestSize:       0.2,
		CVFolds:        3,
		BackgroundSize: 25,
	})
	models = artifacts.New(store, trainer, artifacts.Options{
		Seed:           42,
		BackgroundSize: 25,
		LIME:           explain.LIMEConfig{NumSamples: 300, Seed: 42},
	}, nil)

	code := m.Run()
	store.Close()
	os.RemoveAll(dir)
	os.Exit(code)
}

func newTestApp(t *testing.T, m MetricsInterface) (*fiber.App, *Handler) {
	t.Helper()
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(models, store, m, 30*time.Second)
	t.Cleanup(h.Wait)
	return NewApp(h, Config{AllowOrigins: common.DevOrigins}), h
}

func samplePayload() features.Raw {
	return features.Raw{
		GDPPerCapita:      40000,
		IndustrialOutput:  150000,
		Population:        5000000,
		VehicleCount:      2000000,
		EnergyConsumption: 60000,
		RenewableShare:    30,
		EngineSize:        2.5,
		FuelConsumption:   7.5,
		Cylinders:         4,
	}
}

func do(t *testing.T, app *fiber.App, method, target string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthCheck(t *testing.T) {
	app, _ := newTestApp(t, nil)

	resp := do(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, map[string]string{"status": "ok"}, body)
}

func TestGetMetrics(t *testing.T) {
	app, _ := newTestApp(t, nil)

	resp := do(t, app, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var m schema.MetricsResponse
	decode(t, resp, &m)
	for _, v := range []schema.Float{m.R2, m.RMSE, m.MAE, m.CVMAEMean, m.CVMAEStd} {
		assert.True(t, v.Finite())
	}
	assert.LessOrEqual(t, m.R2.Value(), 1.0)
}

func TestGetBaselineMetrics(t *testing.T) {
	app, _ := newTestApp(t, nil)

	resp := do(t, app, http.MethodGet, "/metrics/baseline", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]any
	decode(t, resp, &raw)
	assert.Nil(t, raw["cv_mae_mean"])
	assert.Nil(t, raw["cv_mae_std"])
	assert.IsType(t, float64(0), raw["r2"])
	assert.LessOrEqual(t, raw["r2"].(float64), 1.0)
}

func TestGetFeatureImportance(t *testing.T) {
	app, _ := newTestApp(t, nil)

	resp := do(t, app, http.MethodGet, "/feature-importance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body schema.FeatureImportanceResponse
	decode(t, resp, &body)
	require.Len(t, body.Items, features.NumFeatures)
	seen := make(map[string]bool)
	for i, item := range body.Items {
		seen[item.Feature] = true
		if i > 0 {
			assert.GreaterOrEqual(t, body.Items[i-1].MeanAbsSHAP.Value(), item.MeanAbsSHAP.Value())
		}
	}
	assert.Len(t, seen, features.NumFeatures)
}

func TestGetPredictionTrend(t *testing.T) {
	app, _ := newTestApp(t, nil)
	p, err := models.Primary(context.Background())
	require.NoError(t, err)
	trainLen := p.Train.Len()

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantPoints int
	}{
		{"default limit", "", http.StatusOK, min(common.DefaultTrendLimit, trainLen)},
		{"small limit", "?limit=5", http.StatusOK, 5},
		{"capped at partition size", "?limit=100000", http.StatusOK, trainLen},
		{"zero", "?limit=0", http.StatusBadRequest, 0},
		{"negative", "?limit=-3", http.StatusBadRequest, 0},
		{"not a number", "?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, app, http.MethodGet, "/prediction-trend"+tt.query, nil)
			require.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus != http.StatusOK {
				var e schema.ErrorResponse
				decode(t, resp, &e)
				assert.True(t, e.Error)
				return
			}

			var body schema.PredictionTrendResponse
			decode(t, resp, &body)
			require.Len(t, body.Points, tt.wantPoints)

			tail := p.Train.Tail(tt.wantPoints)
			for i, pt := range body.Points {
				assert.Equal(t, tail.Index[i], pt.Index)
				assert.Equal(t, tail.Y[i], pt.TrueValue.Value())
				assert.InDelta(t, p.Model.Predict(tail.X[i]), pt.PredictedValue.Value(), 1e-9)
			}
		})
	}
}

func TestGetPolicyInsights(t *testing.T) {
	app, _ := newTestApp(t, nil)

	resp := do(t, app, http.MethodGet, "/policy-insights", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body schema.PolicyInsightsResponse
	decode(t, resp, &body)
	require.NotEmpty(t, body.Insights)
	for _, in := range body.Insights {
		assert.NotEmpty(t, in.Title)
		assert.NotEmpty(t, in.Description)
		assert.NotEmpty(t, in.Rationale)
	}
}

func TestPredict_EndToEnd(t *testing.T) {
	app, _ := newTestApp(t, nil)

	resp := do(t, app, http.MethodPost, "/predict", schema.NewEmissionFeatures(samplePayload()))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body schema.PredictionResponse
	decode(t, resp, &body)

	assert.True(t, body.Prediction.Finite())

	lime := body.LIMEExplanation
	assert.LessOrEqual(t, len(lime.Contributions), 10)
	assert.NotEmpty(t, lime.Contributions)
	sum := 0.0
	for _, c := range lime.Contributions {
		assert.Contains(t, []string{"positive", "negative"}, c.Effect)
		sum += c.Weight.Value()
	}
	assert.Equal(t, lime.PredictedValue, lime.LocalPrediction)
	assert.InDelta(t, body.Prediction.Value(), lime.PredictedValue.Value(), 1e-9)
	assert.InDelta(t, lime.LocalPrediction.Value(), lime.Intercept.Value()+sum, 1e-6)

	shap := body.SHAPValues
	require.Len(t, shap.PerFeature, features.NumFeatures)
	total := shap.BaseValue.Value()
	for i, f := range shap.PerFeature {
		assert.Equal(t, features.Names[i], f.Feature)
		total += f.Value.Value()
	}
	assert.InDelta(t, body.Prediction.Value(), total, 1e-6)
}

func TestPredict_Validation(t *testing.T) {
	app, _ := newTestApp(t, nil)

	tests := []struct {
		name        string
		body        string
		contentType string
		wantMessage string
	}{
		{"missing fields", `{"gdp_per_capita": 40000}`, "application/json", "industrial_output"},
		{"empty object", `{}`, "application/json", "cylinders"},
		{"string value", `{"gdp_per_capita": "rich"}`, "application/json", "Invalid request body"},
		{"malformed json", `{"gdp_per_capita": `, "application/json", "Invalid request body"},
		{"wrong content type", `gdp_per_capita=1`, "text/plain", "Invalid request body"},
	}

	for _, tt := range tests {
		for _, path := range []string{"/predict", "/predict/baseline"} {
			t.Run(tt.name+" "+path, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(tt.body))
				req.Header.Set("Content-Type", tt.contentType)
				resp, err := app.Test(req, -1)
				require.NoError(t, err)
				defer resp.Body.Close()

				require.Equal(t, http.StatusBadRequest, resp.StatusCode)
				var e schema.ErrorResponse
				decode(t, resp, &e)
				assert.True(t, e.Error)
				assert.Contains(t, e.Message, tt.wantMessage)
			})
		}
	}
}

func TestPredictBaseline(t *testing.T) {
	app, _ := newTestApp(t, nil)

	resp := do(t, app, http.MethodPost, "/predict/baseline", schema.NewEmissionFeatures(samplePayload()))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]any
	decode(t, resp, &raw)
	require.Len(t, raw, 1)

	b, err := models.Baseline(context.Background())
	require.NoError(t, err)
	x := features.FromRaw(samplePayload())
	assert.InDelta(t, b.Model.Predict(x[:]), raw["prediction"].(float64), 1e-9)
}

func TestPredict_ZeroIndustrialOutput(t *testing.T) {
	app, _ := newTestApp(t, nil)
	payload := samplePayload()
	payload.IndustrialOutput = 0

	resp := do(t, app, http.MethodPost, "/predict/baseline", schema.NewEmissionFeatures(payload))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// energy_intensity is +Inf, the linear prediction is not finite and encoded as null.
	var raw map[string]any
	decode(t, resp, &raw)
	assert.Contains(t, raw, "prediction")
	assert.Nil(t, raw["prediction"])
}

func TestGetPredictionHistory(t *testing.T) {
	app, h := newTestApp(t, nil)

	do(t, app, http.MethodPost, "/predict/baseline", schema.NewEmissionFeatures(samplePayload()))
	second := samplePayload()
	second.Population = 1234
	do(t, app, http.MethodPost, "/predict", schema.NewEmissionFeatures(second))
	h.Wait()

	resp := do(t, app, http.MethodGet, "/predictions/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body schema.PredictionHistoryResponse
	decode(t, resp, &body)
	require.Len(t, body.Records, 2)
	assert.Equal(t, common.ModelPrimary, body.Records[0].Model)
	assert.Equal(t, 1234.0, body.Records[0].Features.Population)
	assert.Equal(t, common.ModelBaseline, body.Records[1].Model)
	assert.NotEmpty(t, body.Records[0].ID)

	resp = do(t, app, http.MethodGet, "/predictions/history?limit=1", nil)
	decode(t, resp, &body)
	assert.Len(t, body.Records, 1)

	resp = do(t, app, http.MethodGet, "/predictions/history?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type failingModels struct {
	err error
}

func (f failingModels) Primary(context.Context) (*artifacts.Primary, error) { return nil, f.err }

func (f failingModels) Baseline(context.Context) (*artifacts.Baseline, error) { return nil, f.err }

func TestArtifactErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"training failure", errors.New("train: degenerate data"), http.StatusInternalServerError},
		{"still loading", context.DeadlineExceeded, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewApp(NewHandler(failingModels{err: tt.err}, nil, nil, time.Second), Config{})

			for _, path := range []string{"/metrics", "/metrics/baseline", "/feature-importance", "/policy-insights"} {
				resp := do(t, app, http.MethodGet, path, nil)
				assert.Equal(t, tt.wantStatus, resp.StatusCode, path)

				var e schema.ErrorResponse
				decode(t, resp, &e)
				assert.True(t, e.Error)
				assert.NotContains(t, e.Message, "degenerate", "internal details must not leak")
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	app, _ := newTestApp(t, nil)

	resp := do(t, app, http.MethodGet, "/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var e schema.ErrorResponse
	decode(t, resp, &e)
	assert.True(t, e.Error)
}

func TestRequestMetrics(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	app, h := newTestApp(t, metrics.NewWrapper(m))

	do(t, app, http.MethodGet, "/health", nil)
	do(t, app, http.MethodGet, "/health", nil)
	do(t, app, http.MethodGet, "/prediction-trend?limit=0", nil)
	do(t, app, http.MethodPost, "/predict", schema.NewEmissionFeatures(samplePayload()))
	h.Wait()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/prediction-trend", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Predictions.WithLabelValues(common.ModelPrimary)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ExplanationLatency))
}

func TestCORS(t *testing.T) {
	app, _ := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestQueryLimitCap(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		limit, err := queryLimit(c, common.DefaultHistoryLimit, common.MaxHistoryLimit)
		if err != nil {
			return err
		}
		return c.SendString(fmt.Sprint(limit))
	})

	for query, want := range map[string]string{"": "20", "?limit=7": "7", "?limit=9999": "500"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/"+query, nil), -1)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, want, string(body), query)
	}
}
