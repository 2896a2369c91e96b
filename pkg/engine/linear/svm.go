package linear

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/mimir-aip/mimir-automl/pkg/dataset"
	"github.com/mimir-aip/mimir-automl/pkg/estimator"
)

// LinearSvmOptions configures LinearSvm
type LinearSvmOptions struct {
	LabelColumn        string
	Lambda             float64
	PerformProjection  bool
	NoBias             bool
	NumberOfIterations int
}

// LinearSvm trains a hinge-loss linear classifier with Pegasos steps. The bias
// is regularized together with the weights.
type LinearSvm struct {
	opts LinearSvmOptions
	seed int64
}

func NewLinearSvm(opts LinearSvmOptions, env *estimator.Env) *LinearSvm {
	return &LinearSvm{opts: opts, seed: seedOf(env)}
}

func (s *LinearSvm) Options() LinearSvmOptions {
	return s.opts
}

func (s *LinearSvm) Fit(ctx context.Context, data *dataset.Dataset) (estimator.Model, error) {
	return estimator.FitBinaryColumns(ctx, s, data, s.opts.LabelColumn, "")
}

func (s *LinearSvm) FitBinary(ctx context.Context, features *mat.Dense, labels []bool, weights []float64) (estimator.ScoringModel, error) {
	weights, err := checkBinary(features, labels, weights)
	if err != nil {
		return nil, err
	}

	std := fitStandardizer(features)
	x := std.transform(features)
	rng := newRand(s.seed)

	lambda := s.opts.Lambda
	if lambda <= 0 {
		lambda = 1e-3
	}

	w := make([]float64, len(x[0]))
	var bias float64
	t := 0

	iterations := max(s.opts.NumberOfIterations, 1)
	for epoch := 0; epoch < iterations; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, i := range rng.Perm(len(x)) {
			t++
			eta := 1 / (lambda * float64(t))
			y := sign(labels[i])
			margin := y * (floats.Dot(w, x[i]) + bias)

			floats.Scale(1-eta*lambda, w)
			if !s.opts.NoBias {
				bias *= 1 - eta*lambda
			}
			if margin < 1 {
				floats.AddScaled(w, eta*y*weights[i], x[i])
				if !s.opts.NoBias {
					bias += eta * y * weights[i]
				}
			}

			if s.opts.PerformProjection {
				limit := 1 / math.Sqrt(lambda)
				norm := math.Sqrt(floats.Dot(w, w) + bias*bias)
				if norm > limit {
					floats.Scale(limit/norm, w)
					bias *= limit / norm
				}
			}
		}
	}

	return &linearScorer{std: std, w: w, bias: bias}, nil
}
