// Package dataset produces the synthetic CO2 emission dataset and the deterministic
// partitions (train/test split, k-fold, background sample) used by training and
// explanation.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"co2-forecast/internal/features"
)

// ErrTooFewSamples is returned when a dataset cannot be generated or split.
var ErrTooFewSamples = errors.New("dataset: too few samples")

// Dataset is a labeled table of engineered feature rows.
type Dataset struct {
	X [][]float64
	Y []float64
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Y)
}

var (
	cylinderChoices = []float64{3, 4, 6, 8, 10, 12}
	cylinderProbs   = []float64{0.05, 0.45, 0.25, 0.2, 0.03, 0.02}
)

// Generation constants
const (
	energyFloor         = 20_000.0
	energyNoiseStd      = 5_000.0
	emissionNoiseStd    = 15.0
	highIndustrialLevel = 200_000.0
)

// newRand returns a deterministic PCG stream for seed. stream separates independent
// consumers that share one seed.
func newRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

func uniform(rng *rand.Rand, lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*rng.Float64()
	}
	return out
}

func normal(rng *rand.Rand, mu, sigma float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = mu + sigma*rng.NormFloat64()
	}
	return out
}

func choice(rng *rand.Rand, values, probs []float64, n int) []float64 {
	cum := make([]float64, len(probs))
	total := 0.0
	for i, p := range probs {
		total += p
		cum[i] = total
	}

	out := make([]float64, n)
	for i := range out {
		u := rng.Float64() * total
		j := 0
		for j < len(cum)-1 && u >= cum[j] {
			j++
		}
		out[i] = values[j]
	}
	return out
}

// Generate builds nSamples rows of synthetic data. The same (nSamples, seed) pair always
// yields an identical dataset.
func Generate(nSamples int, seed uint64) (*Dataset, error) {
	if nSamples < 2 {
		return nil, fmt.Errorf("%w: need at least 2, got %d", ErrTooFewSamples, nSamples)
	}

	rng := newRand(seed, 0x636f32)

	// Socioeconomic
	gdp := uniform(rng, 5_000, 80_000, nSamples)
	industrial := uniform(rng, 10_000, 300_000, nSamples)
	population := uniform(rng, 100_000, 100_000_000, nSamples)
	vehicles := uniform(rng, 10_000, 5_000_000, nSamples)

	// Energy consumption tracks industrial output and population
	energyNoise := normal(rng, 0, energyNoiseStd, nSamples)
	energy := make([]float64, nSamples)
	for i := range energy {
		energy[i] = math.Max(0.02*industrial[i]+0.0005*population[i]+energyNoise[i], energyFloor)
	}

	// Energy and technical
	renewable := uniform(rng, 5, 70, nSamples)
	engine := uniform(rng, 1.0, 5.0, nSamples)
	fuel := uniform(rng, 3.0, 15.0, nSamples)
	cylinders := choice(rng, cylinderChoices, cylinderProbs, nSamples)

	noise := normal(rng, 0, emissionNoiseStd, nSamples)

	ds := &Dataset{
		X: make([][]float64, nSamples),
		Y: make([]float64, nSamples),
	}
	for i := 0; i < nSamples; i++ {
		v := features.FromRaw(features.Raw{
			GDPPerCapita:      gdp[i],
			IndustrialOutput:  industrial[i],
			Population:        population[i],
			VehicleCount:      vehicles[i],
			EnergyConsumption: energy[i],
			RenewableShare:    renewable[i],
			EngineSize:        engine[i],
			FuelConsumption:   fuel[i],
			Cylinders:         cylinders[i],
		})
		ds.X[i] = v.Slice()
		ds.Y[i] = math.Max(emission(v)+noise[i], 0)
	}

	return ds, nil
}

// emission is the noiseless ground-truth target.
func emission(v features.Vector) float64 {
	energy := v[features.MustIndex(features.EnergyConsumption)]
	industrial := v[features.MustIndex(features.IndustrialOutput)]

	e := 0.000015*energy +
		0.0000004*industrial +
		0.00000008*v[features.MustIndex(features.Population)] +
		0.35*v[features.MustIndex(features.FuelConsumption)] +
		0.000001*v[features.MustIndex(features.VehicleCount)] +
		0.6*v[features.MustIndex(features.EngineSize)] +
		0.08*v[features.MustIndex(features.Cylinders)] +
		8.0*v[features.MustIndex(features.EnergyIntensity)] +
		1e-10*v[features.MustIndex(features.GDPEnergyInteraction)]

	// Renewables are protective
	e -= 0.4 * v[features.MustIndex(features.RenewableShare)]

	// Saturating extra emissions for very high industrial output
	if industrial > highIndustrialLevel {
		e += 0.0000002 * math.Pow(industrial-highIndustrialLevel, 0.7)
	}

	return e
}
