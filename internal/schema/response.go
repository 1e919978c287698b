package schema

import (
	"time"

	"co2-forecast/internal/explain"
	"co2-forecast/internal/features"
	"co2-forecast/internal/ml"
	"co2-forecast/internal/policy"
)

type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// MetricsResponse reports model quality. CV fields are null when not cross-validated.
type MetricsResponse struct {
	R2        Float `json:"r2"`
	RMSE      Float `json:"rmse"`
	MAE       Float `json:"mae"`
	CVMAEMean Float `json:"cv_mae_mean"`
	CVMAEStd  Float `json:"cv_mae_std"`
}

func NewMetricsResponse(m ml.Metrics) MetricsResponse {
	return MetricsResponse{
		R2:        Float(m.R2),
		RMSE:      Float(m.RMSE),
		MAE:       Float(m.MAE),
		CVMAEMean: Float(m.CVMAEMean),
		CVMAEStd:  Float(m.CVMAEStd),
	}
}

type FeatureImportanceItem struct {
	Feature      string `json:"feature"`
	MeanAbsSHAP  Float  `json:"mean_abs_shap"`
	RFImportance Float  `json:"rf_importance"`
}

type FeatureImportanceResponse struct {
	Items []FeatureImportanceItem `json:"items"`
}

// NewFeatureImportanceResponse lists features by descending mean |SHAP|.
func NewFeatureImportanceResponse(g explain.Global) FeatureImportanceResponse {
	ranked := g.Ranked()
	items := make([]FeatureImportanceItem, len(ranked))
	for i, r := range ranked {
		items[i] = FeatureImportanceItem{
			Feature:      r.Feature,
			MeanAbsSHAP:  Float(r.MeanAbsSHAP),
			RFImportance: Float(r.RFImportance),
		}
	}
	return FeatureImportanceResponse{Items: items}
}

type TrendPoint struct {
	Index          int   `json:"index"`
	TrueValue      Float `json:"true_value"`
	PredictedValue Float `json:"predicted_value"`
}

type PredictionTrendResponse struct {
	Points []TrendPoint `json:"points"`
}

type PolicyInsightsResponse struct {
	Insights []policy.Insight `json:"insights"`
}

type LIMEContribution struct {
	Feature string `json:"feature"`
	Weight  Float  `json:"weight"`
	Effect  string `json:"effect"`
}

// LIMEExplanation is the surrogate explanation of one prediction. Intercept is derived
// as LocalPrediction minus the sum of the weights.
type LIMEExplanation struct {
	Intercept       Float              `json:"intercept"`
	PredictedValue  Float              `json:"predicted_value"`
	LocalPrediction Float              `json:"local_prediction"`
	Contributions   []LIMEContribution `json:"contributions"`
}

func NewLIMEExplanation(a explain.Attribution) LIMEExplanation {
	contributions := make([]LIMEContribution, len(a.Items))
	for i, it := range a.Items {
		contributions[i] = LIMEContribution{
			Feature: it.Feature,
			Weight:  Float(it.Weight),
			Effect:  it.Effect(),
		}
	}
	return LIMEExplanation{
		Intercept:       Float(a.Base),
		PredictedValue:  Float(a.Prediction),
		LocalPrediction: Float(a.Prediction),
		Contributions:   contributions,
	}
}

type SHAPFeature struct {
	Feature string `json:"feature"`
	Value   Float  `json:"value"`
}

// SHAPExplanation holds per-feature attributions in schema order.
type SHAPExplanation struct {
	BaseValue  Float         `json:"base_value"`
	PerFeature []SHAPFeature `json:"per_feature"`
}

func NewSHAPExplanation(a explain.Attribution) SHAPExplanation {
	per := make([]SHAPFeature, len(a.Items))
	for i, it := range a.Items {
		per[i] = SHAPFeature{Feature: it.Feature, Value: Float(it.Weight)}
	}
	return SHAPExplanation{BaseValue: Float(a.Base), PerFeature: per}
}

type PredictionResponse struct {
	Prediction      Float           `json:"prediction"`
	LIMEExplanation LIMEExplanation `json:"lime_explanation"`
	SHAPValues      SHAPExplanation `json:"shap_values"`
}

type BaselinePredictionResponse struct {
	Prediction Float `json:"prediction"`
}

type PredictionRecord struct {
	ID         string       `json:"id"`
	Model      string       `json:"model"`
	Features   features.Raw `json:"features"`
	Prediction Float        `json:"prediction"`
	CreatedAt  time.Time    `json:"created_at"`
}

type PredictionHistoryResponse struct {
	Records []PredictionRecord `json:"records"`
}
