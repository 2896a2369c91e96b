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

// multiclassData is a standardized training set with class indices
type multiclassData struct {
	std     standardizer
	x       [][]float64
	classes []string
	y       []int
	weights []float64
}

func prepareMulticlass(data *dataset.Dataset, labelColumn, weightColumn string) (*multiclassData, error) {
	labels, err := data.Column(labelColumn)
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, ErrNoExamples
	}

	classes, y := estimator.DistinctClasses(labels)
	if len(classes) < 2 {
		return nil, fmt.Errorf("%w: %s has %d", estimator.ErrTooFewClasses, labelColumn, len(classes))
	}

	var weights []float64
	if weightColumn != "" {
		if weights, err = data.Weights(weightColumn); err != nil {
			return nil, err
		}
	} else {
		weights = make([]float64, len(labels))
		for i := range weights {
			weights[i] = 1
		}
	}

	std := fitStandardizer(data.Features())
	return &multiclassData{
		std:     std,
		x:       std.transform(data.Features()),
		classes: classes,
		y:       y,
		weights: weights,
	}, nil
}

func (d *multiclassData) dims() (int, int) {
	return len(d.classes), len(d.x[0])
}

// Multinomial is softmax (maximum entropy) regression fit with L-BFGS
type Multinomial struct {
	opts LogisticRegressionOptions
}

func NewMultinomial(opts LogisticRegressionOptions) *Multinomial {
	return &Multinomial{opts: opts}
}

func (m *Multinomial) Options() LogisticRegressionOptions {
	return m.opts
}

func (m *Multinomial) Fit(ctx context.Context, data *dataset.Dataset) (estimator.Model, error) {
	d, err := prepareMulticlass(data, m.opts.LabelColumn, m.opts.WeightColumn)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k, dim := d.dims()
	// params = [W (k x dim, row major)..., bias (k)...]
	nw := k * dim
	objective := func(grad, params []float64) float64 {
		if grad == nil {
			grad = make([]float64, len(params))
		}
		for j := range grad {
			grad[j] = 0
		}

		z := make([]float64, k)
		var f float64
		for i, row := range d.x {
			for c := 0; c < k; c++ {
				z[c] = floats.Dot(params[c*dim:(c+1)*dim], row) + params[nw+c]
			}
			lse := floats.LogSumExp(z)
			f += d.weights[i] * (lse - z[d.y[i]])

			for c := 0; c < k; c++ {
				p := math.Exp(z[c] - lse)
				if c == d.y[i] {
					p -= 1
				}
				g := d.weights[i] * p
				floats.AddScaled(grad[c*dim:(c+1)*dim], g, row)
				grad[nw+c] += g
			}
		}
		return f + m.opts.regularize(params[:nw], grad[:nw])
	}

	problem := optimize.Problem{
		Func: func(params []float64) float64 { return objective(nil, params) },
		Grad: func(grad, params []float64) { objective(grad, params) },
	}

	params, err := m.opts.minimize(problem, make([]float64, nw+k))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &softmaxModel{
		std:     d.std,
		classes: d.classes,
		w:       mat.NewDense(k, dim, append([]float64(nil), params[:nw]...)),
		bias:    append([]float64(nil), params[nw:]...),
	}, nil
}
