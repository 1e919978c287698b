package api

import "github.com/gofiber/fiber/v2"

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", h.HealthCheck)

	// Model quality and global explanations
	app.Get("/metrics", h.GetMetrics)
	app.Get("/metrics/baseline", h.GetBaselineMetrics)
	app.Get("/feature-importance", h.GetFeatureImportance)
	app.Get("/prediction-trend", h.GetPredictionTrend)
	app.Get("/policy-insights", h.GetPolicyInsights)

	// Inference
	app.Post("/predict", h.Predict)
	app.Post("/predict/baseline", h.PredictBaseline)
	app.Get("/predictions/history", h.GetPredictionHistory)
}
