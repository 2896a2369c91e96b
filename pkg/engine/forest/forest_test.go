package forest

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/mimir-aip/mimir-automl/pkg/estimator"
)

// discData is not linearly separable: positive inside a centred disc
func discData(n int) (*mat.Dense, []bool) {
	rng := rand.New(rand.NewSource(4))
	data := make([]float64, 0, 2*n)
	labels := make([]bool, n)
	for i := 0; i < n; i++ {
		x, y := rng.Float64()*2-1, rng.Float64()*2-1
		data = append(data, x, y)
		labels[i] = x*x+y*y < 0.5
	}
	return mat.NewDense(n, 2, data), labels
}

func trainingAccuracy(m estimator.ScoringModel, x *mat.Dense, labels []bool) float64 {
	correct := 0
	for i, l := range labels {
		if (m.Score(x.RawRowView(i)) > 0) == l {
			correct++
		}
	}
	return float64(correct) / float64(len(labels))
}

func TestTreeBuilderRespectsLeafLimit(t *testing.T) {
	x, labels := discData(200)
	rows := make([][]float64, 200)
	target := make([]float64, 200)
	weights := make([]float64, 200)
	all := make([]int, 200)
	for i := range rows {
		rows[i] = x.RawRowView(i)
		if labels[i] {
			target[i] = 1
		}
		weights[i] = 1
		all[i] = i
	}

	for _, maxLeaves := range []int{2, 4, 16} {
		b := &treeBuilder{x: rows, target: target, weights: weights, maxLeaves: maxLeaves, minSamples: 1}
		tree := b.build(all)
		assert.LessOrEqual(t, tree.Leaves(), maxLeaves)
	}
}

func TestTreeBuilderMinSamples(t *testing.T) {
	rows := [][]float64{{1}, {2}, {3}, {4}}
	b := &treeBuilder{
		x: rows, target: []float64{0, 0, 1, 1}, weights: []float64{1, 1, 1, 1},
		maxLeaves: 8, minSamples: 3,
	}
	tree := b.build([]int{0, 1, 2, 3})
	assert.True(t, tree.IsLeaf)
	assert.InDelta(t, 0.5, tree.Value, 1e-12)
}

func TestNodePredictMissingGoesLeft(t *testing.T) {
	tree := &Node{
		Feature: 0, Threshold: 1,
		Left:  &Node{IsLeaf: true, Value: -1},
		Right: &Node{IsLeaf: true, Value: 1},
	}
	assert.Equal(t, -1.0, tree.Predict([]float64{math.NaN()}))
	assert.Equal(t, 1.0, tree.Predict([]float64{2}))
}

func TestRandomForestLearnsDisc(t *testing.T) {
	x, labels := discData(300)
	f := NewRandomForest(RandomForestOptions{
		NumberOfTrees: 20, NumberOfLeaves: 16, MinimumExampleCountPerLeaf: 2, FeatureFraction: 1,
	}, estimator.NewEnv(1))

	m, err := f.FitBinary(context.Background(), x, labels, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, trainingAccuracy(m, x, labels), 0.9)
}

func TestBoostedTreesLearnDisc(t *testing.T) {
	x, labels := discData(300)
	b := NewBoostedTrees(BoostedTreesOptions{
		NumberOfTrees: 30, NumberOfLeaves: 8, MinimumExampleCountPerLeaf: 2, LearningRate: 0.3,
	}, estimator.NewEnv(1))

	m, err := b.FitBinary(context.Background(), x, labels, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, trainingAccuracy(m, x, labels), 0.9)
}

func TestForestInputErrors(t *testing.T) {
	x := mat.NewDense(2, 1, []float64{1, 2})

	_, err := NewRandomForest(RandomForestOptions{}, nil).FitBinary(context.Background(), x, []bool{true}, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = NewBoostedTrees(BoostedTreesOptions{}, nil).FitBinary(context.Background(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoExamples)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewBoostedTrees(BoostedTreesOptions{NumberOfTrees: 3}, nil).FitBinary(ctx, x, []bool{true, false}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
