// Package policy turns global model importances into short policy statements.
package policy

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"co2-forecast/internal/dataset"
	"co2-forecast/internal/explain"
	"co2-forecast/internal/features"
)

// Insight is one human-readable finding.
type Insight struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Rationale   string `json:"rationale"`
}

type rule struct {
	features []string
	build    func(p *message.Printer, train dataset.Partition) Insight
}

// rules are evaluated in this order; the output keeps it.
var rules = []rule{
	{
		features: []string{features.EnergyConsumption},
		build: func(p *message.Printer, train dataset.Partition) Insight {
			q75 := quantile(train, features.EnergyConsumption, 0.75)
			return Insight{
				Title: "High energy consumption strongly drives emissions",
				Description: "Scenarios with higher total energy consumption lead to " +
					"significantly higher predicted CO₂ emissions in the model.",
				Rationale: p.Sprintf("The model assigns high importance to energy consumption, and values "+
					"above roughly %.0f units mark a regime where emissions grow rapidly.", q75),
			}
		},
	},
	{
		features: []string{features.RenewableShare},
		build: func(p *message.Printer, train dataset.Partition) Insight {
			q25 := quantile(train, features.RenewableShare, 0.25)
			q75 := quantile(train, features.RenewableShare, 0.75)
			return Insight{
				Title: "Increasing renewable share reduces emissions",
				Description: "Higher shares of renewable energy are associated with lower CO₂ " +
					"emissions in the model's forecasts.",
				Rationale: p.Sprintf("Renewable share is an important protective feature. Moving from low "+
					"levels (~%.1f%%) to higher levels (~%.1f%%) meaningfully "+
					"reduces predicted emissions for otherwise similar scenarios.", q25, q75),
			}
		},
	},
	{
		features: []string{features.IndustrialOutput},
		build: func(p *message.Printer, train dataset.Partition) Insight {
			q50 := quantile(train, features.IndustrialOutput, 0.5)
			q90 := quantile(train, features.IndustrialOutput, 0.9)
			return Insight{
				Title: "Industrial output exhibits threshold emission effects",
				Description: "The model suggests that emissions start accelerating once " +
					"industrial output passes certain thresholds.",
				Rationale: p.Sprintf("Predicted emissions at very high industrial output (above ~%.0f) "+
					"grow faster than around median levels (~%.0f), indicating "+
					"non-linear escalation at the upper end of industrial activity.", q90, q50),
			}
		},
	},
	{
		features: []string{features.VehicleCount, features.FuelConsumption},
		build: func(*message.Printer, dataset.Partition) Insight {
			return Insight{
				Title: "Transport intensity is a major emissions lever",
				Description: "Higher vehicle fleets and worse fuel efficiency significantly " +
					"increase projected CO₂ emissions.",
				Rationale: "Vehicle count and fuel consumption receive substantial importance scores, " +
					"highlighting that policies targeting fleet efficiency and modal shifts " +
					"can have outsized impact.",
			}
		},
	},
	{
		features: []string{features.EnergyIntensity},
		build: func(*message.Printer, dataset.Partition) Insight {
			return Insight{
				Title: "Reducing energy intensity improves industrial efficiency",
				Description: "Lower energy used per unit of industrial output is associated with " +
					"lower emissions for the same economic activity.",
				Rationale: "Energy intensity emerges as a key engineered feature. Improving process " +
					"efficiency means more output per unit of energy, dampening emission growth.",
			}
		},
	},
}

// Generate emits the insight of every rule whose feature(s) carry a positive mean |SHAP|
// in global. Quantiles are taken from the training partition. The result is never nil.
func Generate(global explain.Global, train dataset.Partition) []Insight {
	p := message.NewPrinter(language.English)
	insights := make([]Insight, 0, len(rules))
	for _, r := range rules {
		if !anyImportant(global, r.features) {
			continue
		}
		insights = append(insights, r.build(p, train))
	}
	return insights
}

func anyImportant(global explain.Global, names []string) bool {
	for _, name := range names {
		if v, ok := global.Importance(name); ok && v > 0 {
			return true
		}
	}
	return false
}

func quantile(train dataset.Partition, name string, q float64) float64 {
	return dataset.Quantile(train.Column(features.MustIndex(name)), q)
}
