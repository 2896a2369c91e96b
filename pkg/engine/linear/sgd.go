package linear

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/mimir-aip/mimir-automl/pkg/dataset"
	"github.com/mimir-aip/mimir-automl/pkg/estimator"
)

// SgdOptions configures Sgd
type SgdOptions struct {
	LabelColumn          string
	WeightColumn         string
	L2Weight             float64
	ConvergenceTolerance float64
	NumberOfIterations   int
	LearningRate         float64
	Shuffle              bool
}

// Sgd trains logistic regression with plain stochastic gradient descent and
// stops early once the epoch loss stops improving by ConvergenceTolerance
type Sgd struct {
	opts SgdOptions
	seed int64
}

func NewSgd(opts SgdOptions, env *estimator.Env) *Sgd {
	return &Sgd{opts: opts, seed: seedOf(env)}
}

func (s *Sgd) Options() SgdOptions {
	return s.opts
}

func (s *Sgd) WeightColumn() string {
	return s.opts.WeightColumn
}

func (s *Sgd) Fit(ctx context.Context, data *dataset.Dataset) (estimator.Model, error) {
	return estimator.FitBinaryColumns(ctx, s, data, s.opts.LabelColumn, s.opts.WeightColumn)
}

func (s *Sgd) FitBinary(ctx context.Context, features *mat.Dense, labels []bool, weights []float64) (estimator.ScoringModel, error) {
	weights, err := checkBinary(features, labels, weights)
	if err != nil {
		return nil, err
	}

	std := fitStandardizer(features)
	x := std.transform(features)
	rng := newRand(s.seed)

	lr := s.opts.LearningRate
	if lr <= 0 {
		lr = 0.01
	}

	w := make([]float64, len(x[0]))
	var bias float64
	prevLoss := math.Inf(1)

	iterations := max(s.opts.NumberOfIterations, 1)
	for epoch := 0; epoch < iterations; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, i := range visitOrder(len(x), s.opts.Shuffle, rng) {
			g := (sigmoid(floats.Dot(w, x[i])+bias) - boolTo01(labels[i])) * weights[i]
			if s.opts.L2Weight > 0 {
				floats.Scale(1-lr*s.opts.L2Weight, w)
			}
			floats.AddScaled(w, -lr*g, x[i])
			bias -= lr * g
		}

		loss := weightedLogLoss(x, labels, weights, w, bias)
		if tol := s.opts.ConvergenceTolerance; tol > 0 && prevLoss-loss < tol*math.Max(prevLoss, 1e-12) {
			break
		}
		prevLoss = loss
	}

	return &linearScorer{std: std, w: w, bias: bias}, nil
}

// SymSgdOptions configures SymSgd. A zero LearningRate or UpdateFrequency is
// chosen from the data.
type SymSgdOptions struct {
	LabelColumn        string
	NumberOfIterations int
	LearningRate       float64
	L2Regularization   float64
	UpdateFrequency    int
	Shuffle            bool
}

// SymSgd trains logistic regression with mini-batch gradient steps: gradients
// of UpdateFrequency examples are accumulated and applied together
type SymSgd struct {
	opts SymSgdOptions
	seed int64
}

func NewSymSgd(opts SymSgdOptions, env *estimator.Env) *SymSgd {
	return &SymSgd{opts: opts, seed: seedOf(env)}
}

func (s *SymSgd) Options() SymSgdOptions {
	return s.opts
}

func (s *SymSgd) Fit(ctx context.Context, data *dataset.Dataset) (estimator.Model, error) {
	return estimator.FitBinaryColumns(ctx, s, data, s.opts.LabelColumn, "")
}

func (s *SymSgd) FitBinary(ctx context.Context, features *mat.Dense, labels []bool, weights []float64) (estimator.ScoringModel, error) {
	weights, err := checkBinary(features, labels, weights)
	if err != nil {
		return nil, err
	}

	std := fitStandardizer(features)
	x := std.transform(features)
	rng := newRand(s.seed)
	dim := len(x[0])

	lr := s.opts.LearningRate
	if lr <= 0 {
		// Standardized rows have squared norm close to the feature count
		lr = 1 / math.Max(1, float64(dim))
	}
	batch := s.opts.UpdateFrequency
	if batch <= 0 {
		batch = min(max(len(x)/10, 1), 20)
	}

	w := make([]float64, dim)
	var bias float64
	gradW := make([]float64, dim)
	var gradB float64

	apply := func(n int) {
		if n == 0 {
			return
		}
		if s.opts.L2Regularization > 0 {
			floats.Scale(1-lr*s.opts.L2Regularization, w)
		}
		floats.AddScaled(w, -lr/float64(n), gradW)
		bias -= lr / float64(n) * gradB
		for j := range gradW {
			gradW[j] = 0
		}
		gradB = 0
	}

	iterations := max(s.opts.NumberOfIterations, 1)
	for epoch := 0; epoch < iterations; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pending := 0
		for _, i := range visitOrder(len(x), s.opts.Shuffle, rng) {
			g := (sigmoid(floats.Dot(w, x[i])+bias) - boolTo01(labels[i])) * weights[i]
			floats.AddScaled(gradW, g, x[i])
			gradB += g
			pending++
			if pending == batch {
				apply(pending)
				pending = 0
			}
		}
		apply(pending)
	}

	return &linearScorer{std: std, w: w, bias: bias}, nil
}

func boolTo01(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func weightedLogLoss(x [][]float64, labels []bool, weights, w []float64, bias float64) float64 {
	var loss, total float64
	for i, row := range x {
		loss += weights[i] * logLoss(sign(labels[i])*(floats.Dot(w, row)+bias))
		total += weights[i]
	}
	if total == 0 {
		return 0
	}
	return loss / total
}
