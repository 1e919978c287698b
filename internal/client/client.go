// Package client is a Go SDK for the CO2 forecasting HTTP API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"co2-forecast/internal/features"
	"co2-forecast/internal/schema"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("co2 api: %d %s", e.StatusCode, e.Message)
}

type Client struct {
	rest *resty.Client
}

// New returns a client for the API at baseURL. A non-positive timeout uses 30s.
func New(baseURL string, timeout time.Duration) *Client {
	r := resty.New().SetBaseURL(baseURL)
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(defaultTimeout) // default fallback
	}
	return &Client{rest: r}
}

func (c *Client) Health(ctx context.Context) (schema.HealthResponse, error) {
	var out schema.HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out)
	return out, err
}

// Metrics returns the random forest's test-set metrics.
func (c *Client) Metrics(ctx context.Context) (schema.MetricsResponse, error) {
	var out schema.MetricsResponse
	err := c.do(ctx, http.MethodGet, "/metrics", nil, nil, &out)
	return out, err
}

// BaselineMetrics returns the linear baseline's metrics. Its CV fields are NaN.
func (c *Client) BaselineMetrics(ctx context.Context) (schema.MetricsResponse, error) {
	var out schema.MetricsResponse
	err := c.do(ctx, http.MethodGet, "/metrics/baseline", nil, nil, &out)
	return out, err
}

func (c *Client) FeatureImportance(ctx context.Context) ([]schema.FeatureImportanceItem, error) {
	var out schema.FeatureImportanceResponse
	err := c.do(ctx, http.MethodGet, "/feature-importance", nil, nil, &out)
	return out.Items, err
}

// PredictionTrend returns up to limit trend points; limit 0 uses the server default.
func (c *Client) PredictionTrend(ctx context.Context, limit int) ([]schema.TrendPoint, error) {
	var out schema.PredictionTrendResponse
	err := c.do(ctx, http.MethodGet, "/prediction-trend", limitParam(limit), nil, &out)
	return out.Points, err
}

func (c *Client) PolicyInsights(ctx context.Context) (schema.PolicyInsightsResponse, error) {
	var out schema.PolicyInsightsResponse
	err := c.do(ctx, http.MethodGet, "/policy-insights", nil, nil, &out)
	return out, err
}

// Predict returns the random forest prediction with LIME and SHAP explanations.
func (c *Client) Predict(ctx context.Context, raw features.Raw) (schema.PredictionResponse, error) {
	var out schema.PredictionResponse
	err := c.do(ctx, http.MethodPost, "/predict", nil, schema.NewEmissionFeatures(raw), &out)
	return out, err
}

func (c *Client) PredictBaseline(ctx context.Context, raw features.Raw) (float64, error) {
	var out schema.BaselinePredictionResponse
	err := c.do(ctx, http.MethodPost, "/predict/baseline", nil, schema.NewEmissionFeatures(raw), &out)
	return out.Prediction.Value(), err
}

// History lists recently served predictions, newest first; limit 0 uses the server default.
func (c *Client) History(ctx context.Context, limit int) ([]schema.PredictionRecord, error) {
	var out schema.PredictionHistoryResponse
	err := c.do(ctx, http.MethodGet, "/predictions/history", limitParam(limit), nil, &out)
	return out.Records, err
}

func limitParam(limit int) map[string]string {
	if limit == 0 {
		return nil
	}
	return map[string]string{"limit": strconv.Itoa(limit)}
}

func (c *Client) do(ctx context.Context, method, path string, params map[string]string, body, result any) error {
	req := c.rest.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(result).
		SetError(&schema.ErrorResponse{})
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	if resp.IsError() {
		apiErr := &APIError{StatusCode: resp.StatusCode(), Message: resp.String()}
		if e, ok := resp.Error().(*schema.ErrorResponse); ok && e.Message != "" {
			apiErr.Message = e.Message
		}
		return apiErr
	}
	return nil
}
