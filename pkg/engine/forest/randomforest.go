package forest

import (
	"context"
	"errors"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/mimir-aip/mimir-automl/pkg/dataset"
	"github.com/mimir-aip/mimir-automl/pkg/estimator"
)

var (
	ErrNoExamples     = errors.New("no training examples")
	ErrLengthMismatch = errors.New("labels or weights do not match feature rows")
)

// RandomForestOptions configures RandomForest
type RandomForestOptions struct {
	LabelColumn                string
	NumberOfTrees              int
	NumberOfLeaves             int
	MinimumExampleCountPerLeaf int
	FeatureFraction            float64 // Share of features tried at each split
}

// RandomForest bags regression trees fit to the 0/1 label. The score is the
// mean tree output minus one half, so zero is the decision boundary.
type RandomForest struct {
	opts RandomForestOptions
	seed int64
}

func NewRandomForest(opts RandomForestOptions, env *estimator.Env) *RandomForest {
	var seed int64
	if env != nil {
		seed = env.Seed
	}
	return &RandomForest{opts: opts, seed: seed}
}

func (f *RandomForest) Options() RandomForestOptions {
	return f.opts
}

func (f *RandomForest) Fit(ctx context.Context, data *dataset.Dataset) (estimator.Model, error) {
	return estimator.FitBinaryColumns(ctx, f, data, f.opts.LabelColumn, "")
}

func (f *RandomForest) FitBinary(ctx context.Context, features *mat.Dense, labels []bool, weights []float64) (estimator.ScoringModel, error) {
	x, weights, err := prepare(features, labels, weights)
	if err != nil {
		return nil, err
	}

	target := make([]float64, len(labels))
	for i, l := range labels {
		if l {
			target[i] = 1
		}
	}

	rng := rand.New(rand.NewSource(f.seed))
	trees := make([]*Node, 0, max(f.opts.NumberOfTrees, 1))
	for t := 0; t < cap(trees); t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sample := make([]int, len(x))
		for i := range sample {
			sample[i] = rng.Intn(len(x))
		}

		b := &treeBuilder{
			x: x, target: target, weights: weights,
			maxLeaves:       max(f.opts.NumberOfLeaves, 2),
			minSamples:      max(f.opts.MinimumExampleCountPerLeaf, 1),
			featureFraction: f.opts.FeatureFraction,
			rng:             rng,
		}
		trees = append(trees, b.build(sample))
	}

	return &forestScorer{trees: trees}, nil
}

type forestScorer struct {
	trees []*Node
}

func (s *forestScorer) Score(row []float64) float64 {
	var sum float64
	for _, t := range s.trees {
		sum += t.Predict(row)
	}
	return sum/float64(len(s.trees)) - 0.5
}

// prepare copies the rows out of the matrix and fills in unit weights
func prepare(features *mat.Dense, labels []bool, weights []float64) ([][]float64, []float64, error) {
	if features == nil {
		return nil, nil, ErrNoExamples
	}
	rows, _ := features.Dims()
	if rows == 0 {
		return nil, nil, ErrNoExamples
	}
	if len(labels) != rows || (weights != nil && len(weights) != rows) {
		return nil, nil, ErrLengthMismatch
	}

	x := make([][]float64, rows)
	for i := range x {
		x[i] = features.RawRowView(i)
	}
	if weights == nil {
		weights = make([]float64, rows)
		for i := range weights {
			weights[i] = 1
		}
	}
	return x, weights, nil
}
