package linear

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/mimir-aip/mimir-automl/pkg/dataset"
	"github.com/mimir-aip/mimir-automl/pkg/estimator"
)

// AveragedPerceptronOptions configures AveragedPerceptron
type AveragedPerceptronOptions struct {
	LabelColumn            string
	LearningRate           float64
	DecreaseLearningRate   bool
	L2RegularizerWeight    float64
	NumberOfIterations     int
	InitialWeightsDiameter float64
	Shuffle                bool
}

// AveragedPerceptron is the perceptron whose final weights are the average of
// the weights after every example
type AveragedPerceptron struct {
	opts AveragedPerceptronOptions
	seed int64
}

func NewAveragedPerceptron(opts AveragedPerceptronOptions, env *estimator.Env) *AveragedPerceptron {
	return &AveragedPerceptron{opts: opts, seed: seedOf(env)}
}

func (p *AveragedPerceptron) Options() AveragedPerceptronOptions {
	return p.opts
}

func (p *AveragedPerceptron) Fit(ctx context.Context, data *dataset.Dataset) (estimator.Model, error) {
	return estimator.FitBinaryColumns(ctx, p, data, p.opts.LabelColumn, "")
}

func (p *AveragedPerceptron) FitBinary(ctx context.Context, features *mat.Dense, labels []bool, weights []float64) (estimator.ScoringModel, error) {
	weights, err := checkBinary(features, labels, weights)
	if err != nil {
		return nil, err
	}

	std := fitStandardizer(features)
	x := std.transform(features)
	rng := newRand(p.seed)

	dim := len(x[0])
	w := make([]float64, dim)
	if d := p.opts.InitialWeightsDiameter; d > 0 {
		for j := range w {
			w[j] = (rng.Float64() - 0.5) * d
		}
	}
	var bias float64

	sumW := make([]float64, dim)
	var sumBias, count float64

	iterations := max(p.opts.NumberOfIterations, 1)
	for epoch := 0; epoch < iterations; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lr := p.opts.LearningRate
		if p.opts.DecreaseLearningRate {
			lr /= math.Sqrt(float64(epoch + 1))
		}

		for _, i := range visitOrder(len(x), p.opts.Shuffle, rng) {
			y := sign(labels[i])
			if y*(floats.Dot(w, x[i])+bias) <= 0 {
				floats.AddScaled(w, lr*y*weights[i], x[i])
				bias += lr * y * weights[i]
			}
			if l2 := p.opts.L2RegularizerWeight; l2 > 0 {
				floats.Scale(1-lr*l2, w)
			}

			floats.Add(sumW, w)
			sumBias += bias
			count++
		}
	}

	floats.Scale(1/count, sumW)
	return &linearScorer{std: std, w: sumW, bias: sumBias / count}, nil
}
