package schema

import (
	"fmt"
	"strings"

	"co2-forecast/internal/features"
)

// EmissionFeatures is the body of POST /predict and POST /predict/baseline. Fields are
// pointers so that an absent field can be told apart from an explicit zero.
type EmissionFeatures struct {
	GDPPerCapita      *float64 `json:"gdp_per_capita"`
	IndustrialOutput  *float64 `json:"industrial_output"`
	Population        *float64 `json:"population"`
	VehicleCount      *float64 `json:"vehicle_count"`
	EnergyConsumption *float64 `json:"energy_consumption"`
	RenewableShare    *float64 `json:"renewable_share"`
	EngineSize        *float64 `json:"engine_size"`
	FuelConsumption   *float64 `json:"fuel_consumption"`
	Cylinders         *float64 `json:"cylinders"`
}

// MissingFieldsError lists required request fields that were absent.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

func (e EmissionFeatures) fields() []struct {
	name  string
	value *float64
} {
	return []struct {
		name  string
		value *float64
	}{
		{features.GDPPerCapita, e.GDPPerCapita},
		{features.IndustrialOutput, e.IndustrialOutput},
		{features.Population, e.Population},
		{features.VehicleCount, e.VehicleCount},
		{features.EnergyConsumption, e.EnergyConsumption},
		{features.RenewableShare, e.RenewableShare},
		{features.EngineSize, e.EngineSize},
		{features.FuelConsumption, e.FuelConsumption},
		{features.Cylinders, e.Cylinders},
	}
}

// Missing returns the names of absent fields in schema order.
func (e EmissionFeatures) Missing() []string {
	var missing []string
	for _, f := range e.fields() {
		if f.value == nil {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Raw validates the request and returns the model inputs.
func (e EmissionFeatures) Raw() (features.Raw, error) {
	if missing := e.Missing(); len(missing) > 0 {
		return features.Raw{}, &MissingFieldsError{Fields: missing}
	}
	return features.Raw{
		GDPPerCapita:      *e.GDPPerCapita,
		IndustrialOutput:  *e.IndustrialOutput,
		Population:        *e.Population,
		VehicleCount:      *e.VehicleCount,
		EnergyConsumption: *e.EnergyConsumption,
		RenewableShare:    *e.RenewableShare,
		EngineSize:        *e.EngineSize,
		FuelConsumption:   *e.FuelConsumption,
		Cylinders:         *e.Cylinders,
	}, nil
}

// NewEmissionFeatures builds a complete request from raw inputs.
func NewEmissionFeatures(r features.Raw) EmissionFeatures {
	return EmissionFeatures{
		GDPPerCapita:      &r.GDPPerCapita,
		IndustrialOutput:  &r.IndustrialOutput,
		Population:        &r.Population,
		VehicleCount:      &r.VehicleCount,
		EnergyConsumption: &r.EnergyConsumption,
		RenewableShare:    &r.RenewableShare,
		EngineSize:        &r.EngineSize,
		FuelConsumption:   &r.FuelConsumption,
		Cylinders:         &r.Cylinders,
	}
}
