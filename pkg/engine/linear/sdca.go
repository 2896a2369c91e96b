package linear

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/mimir-aip/mimir-automl/pkg/dataset"
	"github.com/mimir-aip/mimir-automl/pkg/estimator"
)

// SdcaOptions configures Sdca. Zero L2Const and MaxIterations are chosen from
// the data; a zero L1Threshold disables the soft threshold.
type SdcaOptions struct {
	LabelColumn          string
	L2Const              float64
	L1Threshold          float64
	ConvergenceTolerance float64
	MaxIterations        int
	Shuffle              bool
	BiasLearningRate     float64
}

// Sdca trains a softmax classifier with stochastic coordinate passes over the
// examples: each visit takes a gradient step on that example's loss, the L2
// term shrinks weights, and the L1 threshold soft-thresholds them after every
// epoch. Training stops when the relative loss change drops below
// ConvergenceTolerance.
type Sdca struct {
	opts SdcaOptions
	seed int64
}

func NewSdca(opts SdcaOptions, env *estimator.Env) *Sdca {
	return &Sdca{opts: opts, seed: seedOf(env)}
}

func (s *Sdca) Options() SdcaOptions {
	return s.opts
}

func (s *Sdca) Fit(ctx context.Context, data *dataset.Dataset) (estimator.Model, error) {
	d, err := prepareMulticlass(data, s.opts.LabelColumn, "")
	if err != nil {
		return nil, err
	}

	k, dim := d.dims()
	n := len(d.x)
	rng := newRand(s.seed)

	l2 := s.opts.L2Const
	if l2 <= 0 {
		l2 = 1 / float64(max(n, 1)) / 10
	}
	iterations := s.opts.MaxIterations
	if iterations <= 0 {
		iterations = max(20, min(100, 100000/max(n, 1)))
	}

	w := mat.NewDense(k, dim, nil)
	bias := make([]float64, k)
	z := make([]float64, k)
	prevLoss := math.Inf(1)

	for epoch := 0; epoch < iterations; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lr := 1 / (1 + float64(epoch))
		biasLR := lr
		if s.opts.BiasLearningRate > 0 {
			biasLR = s.opts.BiasLearningRate * lr
		}

		for _, i := range visitOrder(n, s.opts.Shuffle, rng) {
			row := d.x[i]
			for c := 0; c < k; c++ {
				z[c] = floats.Dot(w.RawRowView(c), row) + bias[c]
			}
			lse := floats.LogSumExp(z)
			for c := 0; c < k; c++ {
				p := math.Exp(z[c] - lse)
				if c == d.y[i] {
					p -= 1
				}
				g := d.weights[i] * p
				wc := w.RawRowView(c)
				floats.Scale(1-lr*l2, wc)
				floats.AddScaled(wc, -lr*g, row)
				bias[c] -= biasLR * g
			}
		}

		if t := s.opts.L1Threshold; t > 0 {
			softThreshold(w.RawMatrix().Data, lr*t)
		}

		loss := softmaxLoss(d, w, bias)
		if tol := s.opts.ConvergenceTolerance; tol > 0 && math.Abs(prevLoss-loss) < tol*math.Max(loss, 1e-12) {
			break
		}
		prevLoss = loss
	}

	return &softmaxModel{std: d.std, classes: d.classes, w: w, bias: bias}, nil
}

func softThreshold(w []float64, t float64) {
	for j, v := range w {
		switch {
		case v > t:
			w[j] = v - t
		case v < -t:
			w[j] = v + t
		default:
			w[j] = 0
		}
	}
}

// softmaxLoss is the mean weighted cross-entropy
func softmaxLoss(d *multiclassData, w *mat.Dense, bias []float64) float64 {
	k, _ := d.dims()
	z := make([]float64, k)
	var loss, total float64
	for i, row := range d.x {
		for c := 0; c < k; c++ {
			z[c] = floats.Dot(w.RawRowView(c), row) + bias[c]
		}
		loss += d.weights[i] * (floats.LogSumExp(z) - z[d.y[i]])
		total += d.weights[i]
	}
	if total == 0 {
		return 0
	}
	return loss / total
}
