package explain

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"co2-forecast/internal/features"
	"co2-forecast/internal/ml"
)

// LIME defaults.
const (
	DefaultLIMESamples     = 5000
	DefaultLIMENumFeatures = 10

	// Above this many requested features the cheaper highest-weights selection replaces
	// forward selection.
	forwardSelectionLimit = 6

	limeStream = 0x6c696d65

	epsilon = 2.220446049250313e-16
)

// LIMEConfig tunes the perturbation surrogate.
type LIMEConfig struct {
	NumSamples  int
	NumFeatures int
	Seed        uint64
	// KernelWidth defaults to 0.75*sqrt(number of features).
	KernelWidth float64
}

// LIME explains a prediction with a weighted linear surrogate fitted on perturbations of
// the instance. Perturbations are drawn bin by bin from the training distribution.
type LIME struct {
	model ml.Regressor
	names []string
	disc  *QuartileDiscretizer
	cfg   LIMEConfig

	// per column: bins observed in training and their cumulative frequencies
	binValues [][]int
	binCum    [][]float64

	// standardisation of the discretized training data
	scaleMean, scaleStd []float64
}

// NewLIME binds the explainer to model and the training rows that define the
// perturbation distribution.
func NewLIME(model ml.Regressor, train [][]float64, names []string, cfg LIMEConfig) (*LIME, error) {
	if cfg.NumSamples <= 1 {
		cfg.NumSamples = DefaultLIMESamples
	}
	if cfg.NumFeatures <= 0 {
		cfg.NumFeatures = DefaultLIMENumFeatures
	}
	if cfg.NumFeatures > len(names) {
		cfg.NumFeatures = len(names)
	}
	if cfg.KernelWidth <= 0 {
		cfg.KernelWidth = 0.75 * math.Sqrt(float64(len(names)))
	}

	disc, err := NewQuartileDiscretizer(train, names)
	if err != nil {
		return nil, err
	}

	l := &LIME{
		model:     model,
		names:     names,
		disc:      disc,
		cfg:       cfg,
		binValues: make([][]int, len(names)),
		binCum:    make([][]float64, len(names)),
		scaleMean: make([]float64, len(names)),
		scaleStd:  make([]float64, len(names)),
	}

	n := float64(len(train))
	for j := range names {
		counts := make([]int, disc.NumBins(j))
		sum, sumSq := 0.0, 0.0
		for _, row := range train {
			b := disc.bin(j, row[j])
			counts[b]++
			sum += float64(b)
			sumSq += float64(b * b)
		}
		acc := 0.0
		for b, c := range counts {
			if c == 0 {
				continue
			}
			acc += float64(c) / n
			l.binValues[j] = append(l.binValues[j], b)
			l.binCum[j] = append(l.binCum[j], acc)
		}

		mean := sum / n
		std := math.Sqrt(math.Max(sumSq/n-mean*mean, 0))
		if std < 10*epsilon {
			std = 1
		}
		l.scaleMean[j], l.scaleStd[j] = mean, std
	}
	return l, nil
}

// Method implements LocalExplainer.
func (l *LIME) Method() Method { return MethodLIME }

// Explain implements LocalExplainer.
func (l *LIME) Explain(x features.Vector) (Attribution, error) {
	return l.ExplainRow(x.Slice())
}

// ExplainRow explains the model output for row. The reported base is derived as
// prediction - sum(weights) from the model's real prediction, so the items always add up
// to it. The random stream is reseeded on every call: the same row yields the same
// explanation.
func (l *LIME) ExplainRow(row []float64) (Attribution, error) {
	if len(row) != len(l.names) {
		return Attribution{}, fmt.Errorf("%w: row has %d values, want %d", ml.ErrDimensionMismatch, len(row), len(l.names))
	}
	rng := rand.New(rand.NewPCG(l.cfg.Seed, limeStream))
	nFeat := len(l.names)
	nSamples := l.cfg.NumSamples

	instBins := l.disc.Discretize(row)

	// scaled holds the standardised "same bin as the instance" indicators the surrogate is
	// fitted on; inverse holds the perturbed rows in input space for the model.
	scaled := make([][]float64, nSamples)
	inverse := make([][]float64, nSamples)
	for i := range scaled {
		scaled[i] = make([]float64, nFeat)
		inverse[i] = make([]float64, nFeat)
	}
	copy(inverse[0], row)
	for j := 0; j < nFeat; j++ {
		scaled[0][j] = (1 - l.scaleMean[j]) / l.scaleStd[j]
		for i := 1; i < nSamples; i++ {
			b := l.sampleBin(j, rng)
			same := 0.0
			if b == instBins[j] {
				same = 1
			}
			scaled[i][j] = (same - l.scaleMean[j]) / l.scaleStd[j]
			inverse[i][j] = l.disc.Undiscretize(j, b, rng)
		}
	}

	yss := ml.PredictAll(l.model, inverse)
	prediction := yss[0]

	weights := make([]float64, nSamples)
	for i := range scaled {
		d := 0.0
		for j := range scaled[i] {
			diff := scaled[i][j] - scaled[0][j]
			d += diff * diff
		}
		w := l.cfg.KernelWidth
		weights[i] = math.Sqrt(math.Exp(-d / (w * w)))
	}

	used, err := l.selectFeatures(scaled, yss, weights)
	if err != nil {
		return Attribution{}, err
	}
	surrogate, err := fitRidge(scaled, used, yss, weights, 1)
	if err != nil {
		return Attribution{}, err
	}

	items := make([]Item, len(used))
	for k, j := range used {
		items[k] = Item{
			Feature: l.disc.Label(j, instBins[j]),
			Weight:  surrogate.coef[k],
		}
	}
	sort.SliceStable(items, func(a, b int) bool {
		return math.Abs(items[a].Weight) > math.Abs(items[b].Weight)
	})

	attr := Attribution{
		Method:     MethodLIME,
		Prediction: prediction,
		Items:      items,
	}
	attr.Base = prediction - attr.Sum()
	return attr, nil
}

func (l *LIME) sampleBin(j int, rng *rand.Rand) int {
	cum := l.binCum[j]
	u := rng.Float64() * cum[len(cum)-1]
	k := sort.SearchFloat64s(cum, u)
	if k >= len(cum) {
		k = len(cum) - 1
	}
	return l.binValues[j][k]
}

func (l *LIME) selectFeatures(X [][]float64, y, w []float64) ([]int, error) {
	if l.cfg.NumFeatures > forwardSelectionLimit {
		return l.highestWeights(X, y, w)
	}
	return l.forwardSelection(X, y, w)
}

// highestWeights ranks features by |coef_j * x0_j| of a lightly regularised fit.
func (l *LIME) highestWeights(X [][]float64, y, w []float64) ([]int, error) {
	all := make([]int, len(l.names))
	for j := range all {
		all[j] = j
	}
	fit, err := fitRidge(X, all, y, w, 0.01)
	if err != nil {
		return nil, err
	}
	score := make([]float64, len(all))
	for j := range all {
		score[j] = math.Abs(fit.coef[j] * X[0][j])
	}
	sort.SliceStable(all, func(a, b int) bool {
		return score[all[a]] > score[all[b]]
	})
	return all[:l.cfg.NumFeatures], nil
}

// forwardSelection greedily adds the feature that maximises the weighted R^2.
func (l *LIME) forwardSelection(X [][]float64, y, w []float64) ([]int, error) {
	var used []int
	taken := make([]bool, len(l.names))
	for len(used) < l.cfg.NumFeatures {
		best, bestScore := -1, math.Inf(-1)
		for j := range l.names {
			if taken[j] {
				continue
			}
			cols := append(append([]int(nil), used...), j)
			fit, err := fitRidge(X, cols, y, w, 0)
			if err != nil {
				return nil, err
			}
			if s := fit.score(X, y, w); s > bestScore || best < 0 {
				best, bestScore = j, s
			}
		}
		used = append(used, best)
		taken[best] = true
	}
	return used, nil
}
