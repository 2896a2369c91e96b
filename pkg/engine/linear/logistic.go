package linear

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/mimir-aip/mimir-automl/pkg/dataset"
	"github.com/mimir-aip/mimir-automl/pkg/estimator"
)

// l1Smoothing turns |w| into sqrt(w^2 + eps) so L-BFGS sees a smooth objective
const l1Smoothing = 1e-8

// LogisticRegressionOptions configures LogisticRegression and Multinomial
type LogisticRegressionOptions struct {
	LabelColumn   string
	WeightColumn  string
	OptTol        float64
	L2Weight      float64
	L1Weight      float64
	MemorySize    int
	MaxIterations int
}

func (o LogisticRegressionOptions) settings() (*optimize.Settings, *optimize.LBFGS) {
	tol := o.OptTol
	if tol <= 0 {
		tol = 1e-7
	}
	store := o.MemorySize
	if store <= 0 {
		store = 20
	}
	settings := &optimize.Settings{
		GradientThreshold: tol,
		MajorIterations:   max(o.MaxIterations, 1),
		Converger:         &optimize.FunctionConverge{Absolute: 1e-12, Relative: tol, Iterations: 10},
	}
	return settings, &optimize.LBFGS{Store: store}
}

// minimize runs L-BFGS and keeps the last location when the line search gives
// up after making progress
func (o LogisticRegressionOptions) minimize(problem optimize.Problem, init []float64) ([]float64, error) {
	settings, method := o.settings()
	result, err := optimize.Minimize(problem, init, settings, method)
	if result != nil && floats.HasNaN(result.X) {
		return nil, fmt.Errorf("optimization diverged: %s", result.Status)
	}
	if err != nil {
		if result == nil || result.X == nil {
			return nil, fmt.Errorf("failed to optimize: %w", err)
		}
	}
	return result.X, nil
}

// regularize adds the L2 and smoothed L1 penalties on w to f and grad
func (o LogisticRegressionOptions) regularize(w, grad []float64) float64 {
	var f float64
	for j, v := range w {
		if o.L2Weight > 0 {
			f += 0.5 * o.L2Weight * v * v
			grad[j] += o.L2Weight * v
		}
		if o.L1Weight > 0 {
			a := math.Sqrt(v*v + l1Smoothing)
			f += o.L1Weight * a
			grad[j] += o.L1Weight * v / a
		}
	}
	return f
}

// LogisticRegression is binary logistic regression fit with L-BFGS on the
// summed weighted log loss plus L1 and L2 penalties
type LogisticRegression struct {
	opts LogisticRegressionOptions
}

func NewLogisticRegression(opts LogisticRegressionOptions) *LogisticRegression {
	return &LogisticRegression{opts: opts}
}

func (l *LogisticRegression) Options() LogisticRegressionOptions {
	return l.opts
}

func (l *LogisticRegression) WeightColumn() string {
	return l.opts.WeightColumn
}

func (l *LogisticRegression) Fit(ctx context.Context, data *dataset.Dataset) (estimator.Model, error) {
	return estimator.FitBinaryColumns(ctx, l, data, l.opts.LabelColumn, l.opts.WeightColumn)
}

func (l *LogisticRegression) FitBinary(ctx context.Context, features *mat.Dense, labels []bool, weights []float64) (estimator.ScoringModel, error) {
	weights, err := checkBinary(features, labels, weights)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	std := fitStandardizer(features)
	x := std.transform(features)
	dim := len(x[0])

	// params = [w..., bias]
	objective := func(grad, params []float64) float64 {
		w, bias := params[:dim], params[dim]
		if grad != nil {
			for j := range grad {
				grad[j] = 0
			}
		} else {
			grad = make([]float64, dim+1)
		}

		var f float64
		for i, row := range x {
			y := sign(labels[i])
			m := y * (floats.Dot(w, row) + bias)
			f += weights[i] * logLoss(m)
			// d/dm log(1+e^-m) = -sigmoid(-m)
			g := -weights[i] * y * sigmoid(-m)
			floats.AddScaled(grad[:dim], g, row)
			grad[dim] += g
		}
		return f + l.opts.regularize(w, grad[:dim])
	}

	problem := optimize.Problem{
		Func: func(params []float64) float64 { return objective(nil, params) },
		Grad: func(grad, params []float64) { objective(grad, params) },
	}

	params, err := l.opts.minimize(problem, make([]float64, dim+1))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &linearScorer{std: std, w: append([]float64(nil), params[:dim]...), bias: params[dim]}, nil
}
