package api

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"co2-forecast/internal/artifacts"
	"co2-forecast/internal/common"
	"co2-forecast/internal/explain"
	"co2-forecast/internal/features"
	"co2-forecast/internal/history"
	"co2-forecast/internal/policy"
	"co2-forecast/internal/schema"
)

const historyWriteTimeout = 5 * time.Second

// Models gives access to the trained bundles, initialising them on first use.
type Models interface {
	Primary(ctx context.Context) (*artifacts.Primary, error)
	Baseline(ctx context.Context) (*artifacts.Baseline, error)
}

// MetricsInterface defines the metrics the HTTP layer reports.
type MetricsInterface interface {
	RequestObserve(method, route string, status int, seconds float64)
	PredictionsInc(model string)
	ExplanationObserve(method string, seconds float64)
	HistoryErrorsInc()
}

type nopMetrics struct{}

func (nopMetrics) RequestObserve(string, string, int, float64) {}

func (nopMetrics) PredictionsInc(string) {}

func (nopMetrics) ExplanationObserve(string, float64) {}

func (nopMetrics) HistoryErrorsInc() {}

// Handler contains all HTTP handlers
type Handler struct {
	models   Models
	recorder history.Recorder
	metrics  MetricsInterface
	timeout  time.Duration

	pending sync.WaitGroup
}

// NewHandler creates a new handler. recorder and metrics may be nil. timeout bounds how
// long a request waits for the artifacts; zero means no bound.
func NewHandler(models Models, recorder history.Recorder, metrics MetricsInterface, timeout time.Duration) *Handler {
	if recorder == nil {
		recorder = history.Nop{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Handler{
		models:   models,
		recorder: recorder,
		metrics:  metrics,
		timeout:  timeout,
	}
}

// Wait blocks until pending history writes have finished.
func (h *Handler) Wait() {
	h.pending.Wait()
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(schema.HealthResponse{Status: "ok"})
}

// GetMetrics returns the test-set metrics of the random forest
func (h *Handler) GetMetrics(c *fiber.Ctx) error {
	p, err := h.primary(c)
	if err != nil {
		return err
	}
	return c.JSON(schema.NewMetricsResponse(p.Metrics))
}

// GetBaselineMetrics returns the test-set metrics of the linear baseline
func (h *Handler) GetBaselineMetrics(c *fiber.Ctx) error {
	b, err := h.baseline(c)
	if err != nil {
		return err
	}
	return c.JSON(schema.NewMetricsResponse(b.Metrics))
}

// GetFeatureImportance returns features ranked by mean |SHAP|
func (h *Handler) GetFeatureImportance(c *fiber.Ctx) error {
	p, err := h.primary(c)
	if err != nil {
		return err
	}
	return c.JSON(schema.NewFeatureImportanceResponse(p.Global))
}

// GetPredictionTrend returns true and predicted values for the tail of the training
// partition
func (h *Handler) GetPredictionTrend(c *fiber.Ctx) error {
	limit, err := queryLimit(c, common.DefaultTrendLimit, 0)
	if err != nil {
		return err
	}
	p, err := h.primary(c)
	if err != nil {
		return err
	}

	tail := p.Train.Tail(limit)
	points := make([]schema.TrendPoint, tail.Len())
	for i := range points {
		points[i] = schema.TrendPoint{
			Index:          tail.Index[i],
			TrueValue:      schema.Float(tail.Y[i]),
			PredictedValue: schema.Float(p.Model.Predict(tail.X[i])),
		}
	}
	return c.JSON(schema.PredictionTrendResponse{Points: points})
}

// GetPolicyInsights returns the rule-based policy statements
func (h *Handler) GetPolicyInsights(c *fiber.Ctx) error {
	p, err := h.primary(c)
	if err != nil {
		return err
	}
	return c.JSON(schema.PolicyInsightsResponse{Insights: policy.Generate(p.Global, p.Train)})
}

// Predict returns the random forest prediction with its LIME and SHAP explanations
func (h *Handler) Predict(c *fiber.Ctx) error {
	raw, err := parseFeatures(c)
	if err != nil {
		return err
	}
	p, err := h.primary(c)
	if err != nil {
		return err
	}

	x := features.FromRaw(raw)
	prediction := p.Model.Predict(x[:])

	explainers := p.Explainers()
	attributions := make([]explain.Attribution, len(explainers))
	var g errgroup.Group
	for i, e := range explainers {
		g.Go(func() error {
			start := time.Now()
			a, err := e.Explain(x)
			if err != nil {
				return err
			}
			h.metrics.ExplanationObserve(string(e.Method()), time.Since(start).Seconds())
			attributions[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Local explanation failed")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to explain prediction")
	}

	resp := schema.PredictionResponse{Prediction: schema.Float(prediction)}
	for _, a := range attributions {
		switch a.Method {
		case explain.MethodLIME:
			resp.LIMEExplanation = schema.NewLIMEExplanation(a)
		case explain.MethodTreeSHAP:
			resp.SHAPValues = schema.NewSHAPExplanation(a)
		}
	}

	h.metrics.PredictionsInc(common.ModelPrimary)
	h.record(common.ModelPrimary, raw, prediction)
	return c.JSON(resp)
}

// PredictBaseline returns the linear baseline prediction without explanations
func (h *Handler) PredictBaseline(c *fiber.Ctx) error {
	raw, err := parseFeatures(c)
	if err != nil {
		return err
	}
	b, err := h.baseline(c)
	if err != nil {
		return err
	}

	x := features.FromRaw(raw)
	prediction := b.Model.Predict(x[:])

	h.metrics.PredictionsInc(common.ModelBaseline)
	h.record(common.ModelBaseline, raw, prediction)
	return c.JSON(schema.BaselinePredictionResponse{Prediction: schema.Float(prediction)})
}

// GetPredictionHistory returns the most recent served predictions
func (h *Handler) GetPredictionHistory(c *fiber.Ctx) error {
	limit, err := queryLimit(c, common.DefaultHistoryLimit, common.MaxHistoryLimit)
	if err != nil {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	records, err := h.recorder.Recent(ctx, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list prediction history")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch prediction history")
	}

	resp := schema.PredictionHistoryResponse{Records: make([]schema.PredictionRecord, len(records))}
	for i, rec := range records {
		resp.Records[i] = schema.PredictionRecord{
			ID:         rec.ID.String(),
			Model:      rec.Model,
			Features:   rec.Features,
			Prediction: rec.Prediction,
			CreatedAt:  rec.CreatedAt,
		}
	}
	return c.JSON(resp)
}

func (h *Handler) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.UserContext())
	}
	return context.WithTimeout(c.UserContext(), h.timeout)
}

func (h *Handler) primary(c *fiber.Ctx) (*artifacts.Primary, error) {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	p, err := h.models.Primary(ctx)
	if err != nil {
		return nil, artifactError(err)
	}
	return p, nil
}

func (h *Handler) baseline(c *fiber.Ctx) (*artifacts.Baseline, error) {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	b, err := h.models.Baseline(ctx)
	if err != nil {
		return nil, artifactError(err)
	}
	return b, nil
}

func artifactError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Model artifacts are not ready yet")
	}
	log.Error().Err(err).Msg("Failed to load model artifacts")
	return fiber.NewError(fiber.StatusInternalServerError, "Failed to load model artifacts")
}

// record saves a served prediction in the background. Failures are logged only.
func (h *Handler) record(model string, raw features.Raw, prediction float64) {
	rec := history.NewRecord(model, raw, prediction)
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		if err := h.recorder.Save(ctx, rec); err != nil {
			h.metrics.HistoryErrorsInc()
			log.Warn().Err(err).Str("model", model).Msg("Failed to save prediction log")
		}
	}()
}

func parseFeatures(c *fiber.Ctx) (features.Raw, error) {
	var req schema.EmissionFeatures
	if err := c.BodyParser(&req); err != nil {
		return features.Raw{}, fiber.NewError(fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	raw, err := req.Raw()
	if err != nil {
		return features.Raw{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return raw, nil
}

// queryLimit parses the limit query parameter. Values must be positive; max > 0 caps them.
func queryLimit(c *fiber.Ctx, def, max int) (int, error) {
	v := c.Query("limit")
	if v == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit, nil
}
