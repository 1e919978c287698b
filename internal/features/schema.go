// Package features defines the fixed feature schema shared by training and inference.
//
// The model consumes an 11-field vector: nine raw inputs followed by two engineered
// features derived from them. Field order is part of the model contract and must not
// change between the training and serving paths.
package features

import "fmt"

// Feature names in model order.
const (
	GDPPerCapita         = "gdp_per_capita"
	IndustrialOutput     = "industrial_output"
	Population           = "population"
	VehicleCount         = "vehicle_count"
	EnergyConsumption    = "energy_consumption"
	RenewableShare       = "renewable_share"
	EngineSize           = "engine_size"
	FuelConsumption      = "fuel_consumption"
	Cylinders            = "cylinders"
	EnergyIntensity      = "energy_intensity"
	GDPEnergyInteraction = "gdp_energy_interaction"
)

// Target is the name of the regression target column.
const Target = "co2_emissions"

const (
	NumRaw      = 9
	NumFeatures = 11
)

// Names is the ordered schema. Index i of a Vector holds Names[i].
var Names = []string{
	GDPPerCapita,
	IndustrialOutput,
	Population,
	VehicleCount,
	EnergyConsumption,
	RenewableShare,
	EngineSize,
	FuelConsumption,
	Cylinders,
	EnergyIntensity,
	GDPEnergyInteraction,
}

var nameIndex = func() map[string]int {
	m := make(map[string]int, len(Names))
	for i, n := range Names {
		m[n] = i
	}
	return m
}()

// Index returns the position of name in the schema, or -1 if unknown.
func Index(name string) int {
	if i, ok := nameIndex[name]; ok {
		return i
	}
	return -1
}

// MustIndex is Index for names known at compile time.
func MustIndex(name string) int {
	i := Index(name)
	if i < 0 {
		panic(fmt.Sprintf("features: unknown feature %q", name))
	}
	return i
}

// Raw holds the nine user-supplied inputs.
type Raw struct {
	GDPPerCapita      float64 `json:"gdp_per_capita"`
	IndustrialOutput  float64 `json:"industrial_output"`
	Population        float64 `json:"population"`
	VehicleCount      float64 `json:"vehicle_count"`
	EnergyConsumption float64 `json:"energy_consumption"`
	RenewableShare    float64 `json:"renewable_share"`
	EngineSize        float64 `json:"engine_size"`
	FuelConsumption   float64 `json:"fuel_consumption"`
	Cylinders         float64 `json:"cylinders"`
}

// Vector is a fully engineered feature vector in schema order.
type Vector [NumFeatures]float64

// EnergyIntensityOf is energy used per unit of industrial output.
// A zero output yields a non-finite value which is propagated as-is.
func EnergyIntensityOf(energyConsumption, industrialOutput float64) float64 {
	return energyConsumption / industrialOutput
}

// GDPEnergyInteractionOf is the product of GDP per capita and energy consumption.
func GDPEnergyInteractionOf(gdpPerCapita, energyConsumption float64) float64 {
	return gdpPerCapita * energyConsumption
}

// FromRaw builds the model input vector, deriving the engineered fields.
func FromRaw(r Raw) Vector {
	return Vector{
		r.GDPPerCapita,
		r.IndustrialOutput,
		r.Population,
		r.VehicleCount,
		r.EnergyConsumption,
		r.RenewableShare,
		r.EngineSize,
		r.FuelConsumption,
		r.Cylinders,
		EnergyIntensityOf(r.EnergyConsumption, r.IndustrialOutput),
		GDPEnergyInteractionOf(r.GDPPerCapita, r.EnergyConsumption),
	}
}

// Slice returns a copy of the vector as a slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, v[:])
	return out
}

// Map returns the vector keyed by feature name.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, NumFeatures)
	for i, n := range Names {
		m[n] = v[i]
	}
	return m
}

// Raw recovers the nine raw inputs.
func (v Vector) Raw() Raw {
	return Raw{
		GDPPerCapita:      v[0],
		IndustrialOutput:  v[1],
		Population:        v[2],
		VehicleCount:      v[3],
		EnergyConsumption: v[4],
		RenewableShare:    v[5],
		EngineSize:        v[6],
		FuelConsumption:   v[7],
		Cylinders:         v[8],
	}
}

// VectorFromSlice copies a row of length NumFeatures into a Vector.
func VectorFromSlice(row []float64) (Vector, error) {
	var v Vector
	if len(row) != NumFeatures {
		return v, fmt.Errorf("features: expected %d values, got %d", NumFeatures, len(row))
	}
	copy(v[:], row)
	return v, nil
}
