package forest

import (
	"context"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/mimir-aip/mimir-automl/pkg/dataset"
	"github.com/mimir-aip/mimir-automl/pkg/estimator"
)

// BoostedTreesOptions configures BoostedTrees
type BoostedTreesOptions struct {
	LabelColumn                string
	NumberOfTrees              int
	NumberOfLeaves             int
	MinimumExampleCountPerLeaf int
	LearningRate               float64
	FeatureFraction            float64 // Share of features tried at each split
}

// BoostedTrees is gradient boosting of regression trees on the logistic loss.
// Leaves take a Newton step; the score is the boosted log-odds.
type BoostedTrees struct {
	opts BoostedTreesOptions
	seed int64
}

func NewBoostedTrees(opts BoostedTreesOptions, env *estimator.Env) *BoostedTrees {
	var seed int64
	if env != nil {
		seed = env.Seed
	}
	return &BoostedTrees{opts: opts, seed: seed}
}

func (b *BoostedTrees) Options() BoostedTreesOptions {
	return b.opts
}

func (b *BoostedTrees) Fit(ctx context.Context, data *dataset.Dataset) (estimator.Model, error) {
	return estimator.FitBinaryColumns(ctx, b, data, b.opts.LabelColumn, "")
}

func (b *BoostedTrees) FitBinary(ctx context.Context, features *mat.Dense, labels []bool, weights []float64) (estimator.ScoringModel, error) {
	x, weights, err := prepare(features, labels, weights)
	if err != nil {
		return nil, err
	}
	n := len(x)

	y := make([]float64, n)
	var pos, total float64
	for i, l := range labels {
		if l {
			y[i] = 1
			pos += weights[i]
		}
		total += weights[i]
	}
	p := math.Min(math.Max(pos/total, 1e-6), 1-1e-6)
	base := math.Log(p / (1 - p))

	lr := b.opts.LearningRate
	if lr <= 0 {
		lr = 0.2
	}

	f := make([]float64, n)
	for i := range f {
		f[i] = base
	}
	residual := make([]float64, n)
	hessian := make([]float64, n)

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	rng := rand.New(rand.NewSource(b.seed))
	scorer := &boostedScorer{base: base, learningRate: lr}
	for t := 0; t < max(b.opts.NumberOfTrees, 1); t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for i := range f {
			prob := 1 / (1 + math.Exp(-f[i]))
			residual[i] = y[i] - prob
			hessian[i] = prob * (1 - prob)
		}

		builder := &treeBuilder{
			x: x, target: residual, weights: weights,
			maxLeaves:       max(b.opts.NumberOfLeaves, 2),
			minSamples:      max(b.opts.MinimumExampleCountPerLeaf, 1),
			featureFraction: b.opts.FeatureFraction,
			rng:             rng,
			leafValue: func(rows []int) float64 {
				var num, den float64
				for _, i := range rows {
					num += weights[i] * residual[i]
					den += weights[i] * hessian[i]
				}
				if den < 1e-12 {
					return 0
				}
				return num / den
			},
		}
		tree := builder.build(all)
		scorer.trees = append(scorer.trees, tree)

		for i, row := range x {
			f[i] += lr * tree.Predict(row)
		}
	}

	return scorer, nil
}

type boostedScorer struct {
	base         float64
	learningRate float64
	trees        []*Node
}

func (s *boostedScorer) Score(row []float64) float64 {
	score := s.base
	for _, t := range s.trees {
		score += s.learningRate * t.Predict(row)
	}
	return score
}
