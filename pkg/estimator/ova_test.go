package estimator_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/mimir-aip/mimir-automl/pkg/dataset"
	"github.com/mimir-aip/mimir-automl/pkg/estimator"
)

// centroidBinary scores a row by how much closer it is to the positive
// centroid than to the negative one
type centroidBinary struct {
	calls atomic.Int32
	err   error
}

type centroidScorer struct{ pos, neg []float64 }

func sqDist(a, b []float64) float64 {
	var d float64
	for j := range a {
		d += (a[j] - b[j]) * (a[j] - b[j])
	}
	return d
}

func (s centroidScorer) Score(row []float64) float64 {
	return sqDist(row, s.neg) - sqDist(row, s.pos)
}

func (c *centroidBinary) Fit(ctx context.Context, data *dataset.Dataset) (estimator.Model, error) {
	return estimator.FitBinaryColumns(ctx, c, data, "Label", "")
}

func (c *centroidBinary) FitBinary(_ context.Context, x *mat.Dense, y []bool, _ []float64) (estimator.ScoringModel, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	_, cols := x.Dims()
	pos, neg := make([]float64, cols), make([]float64, cols)
	var np, nn float64
	for i, isPos := range y {
		target := neg
		if isPos {
			target, np = pos, np+1
		} else {
			nn++
		}
		for j := 0; j < cols; j++ {
			target[j] += x.At(i, j)
		}
	}
	for j := 0; j < cols; j++ {
		pos[j] /= np
		neg[j] /= nn
	}
	return centroidScorer{pos: pos, neg: neg}, nil
}

// constantBinary ties every class
type constantBinary struct{ centroidBinary }

func (c *constantBinary) FitBinary(context.Context, *mat.Dense, []bool, []float64) (estimator.ScoringModel, error) {
	return centroidScorer{pos: []float64{0, 0}, neg: []float64{0, 0}}, nil
}

const threeBlobs = `x,y,Label
0,0,red
0.1,0.2,red
5,5,green
5.2,4.9,green
10,0,blue
9.8,0.3,blue
`

func loadBlobs(t *testing.T) *dataset.Dataset {
	t.Helper()
	d, err := dataset.LoadCSV(strings.NewReader(threeBlobs), "Label")
	require.NoError(t, err)
	return d
}

func TestOneVersusAllTrainsOneModelPerClass(t *testing.T) {
	for _, parallelism := range []int{1, 3} {
		binary := &centroidBinary{}
		ova := estimator.NewOneVersusAll(binary, "Label", &estimator.Env{Parallelism: parallelism})

		model, err := ova.Fit(context.Background(), loadBlobs(t))
		require.NoError(t, err)

		assert.Equal(t, int32(3), binary.calls.Load())
		assert.Equal(t, []string{"red", "green", "blue"}, model.Classes())
		assert.Equal(t, "red", model.Predict([]float64{0.2, 0.1}))
		assert.Equal(t, "green", model.Predict([]float64{4.8, 5.1}))
		assert.Equal(t, "blue", model.Predict([]float64{9.9, 0.1}))
	}
}

func TestOneVersusAllTieGoesToFirstClass(t *testing.T) {
	ova := estimator.NewOneVersusAll(&constantBinary{}, "Label", nil)
	model, err := ova.Fit(context.Background(), loadBlobs(t))
	require.NoError(t, err)

	assert.Equal(t, "red", model.Predict([]float64{10, 0}))
}

func TestOneVersusAllErrors(t *testing.T) {
	boom := errors.New("boom")
	ova := estimator.NewOneVersusAll(&centroidBinary{err: boom}, "Label", nil)
	_, err := ova.Fit(context.Background(), loadBlobs(t))
	require.ErrorIs(t, err, boom)

	ova = estimator.NewOneVersusAll(&centroidBinary{}, "Missing", nil)
	_, err = ova.Fit(context.Background(), loadBlobs(t))
	require.ErrorIs(t, err, dataset.ErrColumnNotFound)

	single, err := dataset.LoadCSV(strings.NewReader("x,Label\n1,a\n2,a\n"), "Label")
	require.NoError(t, err)
	ova = estimator.NewOneVersusAll(&centroidBinary{}, "Label", nil)
	_, err = ova.Fit(context.Background(), single)
	require.ErrorIs(t, err, estimator.ErrTooFewClasses)
}

func TestFitBinaryColumnsBooleanLabels(t *testing.T) {
	d, err := dataset.LoadCSV(strings.NewReader("x,y,Label\n0,0,true\n5,5,false\n0.1,0,true\n5,4.8,false\n"), "Label")
	require.NoError(t, err)

	model, err := (&centroidBinary{}).Fit(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []string{"false", "true"}, model.Classes())
	assert.Equal(t, "true", model.Predict([]float64{0, 0.1}))
	assert.Equal(t, "false", model.Predict([]float64{5, 5}))

	_, err = (&centroidBinary{}).Fit(context.Background(), loadBlobs(t))
	require.ErrorIs(t, err, estimator.ErrNotBinary)
}

func TestEvaluate(t *testing.T) {
	d := loadBlobs(t)
	model, err := estimator.NewOneVersusAll(&constantBinary{}, "Label", nil).Fit(context.Background(), d)
	require.NoError(t, err)

	// Always predicts red: 2 of 6 correct, recall 1/0/0
	metrics, err := estimator.Evaluate(model, d, "Label")
	require.NoError(t, err)
	assert.InDelta(t, 2.0/6.0, metrics.MicroAccuracy, 1e-12)
	assert.InDelta(t, 1.0/3.0, metrics.MacroAccuracy, 1e-12)
	assert.Equal(t, 3, metrics.Classes)
	assert.Equal(t, 6, metrics.TestRows)
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 0, estimator.Argmax([]float64{1, 1, 1}))
	assert.Equal(t, 2, estimator.Argmax([]float64{-3, -2, -1}))
	assert.Equal(t, 1, estimator.Argmax([]float64{0, 2, 2}))
}

// weightedBinary records the weights each per-class fit receives
type weightedBinary struct {
	centroidBinary
	column string
	mu     sync.Mutex
	seen   [][]float64
}

func (w *weightedBinary) WeightColumn() string {
	return w.column
}

func (w *weightedBinary) FitBinary(ctx context.Context, x *mat.Dense, y []bool, weights []float64) (estimator.ScoringModel, error) {
	w.mu.Lock()
	w.seen = append(w.seen, weights)
	w.mu.Unlock()
	return w.centroidBinary.FitBinary(ctx, x, y, weights)
}

func TestOneVersusAllPassesNestedWeights(t *testing.T) {
	const weighted = `x,y,Label,Weight
0,0,red,1
5,5,green,2
10,0,blue,0.5
`
	d, err := dataset.LoadCSV(strings.NewReader(weighted), "Label", "Weight")
	require.NoError(t, err)

	binary := &weightedBinary{column: "Weight"}
	ova := estimator.NewOneVersusAll(binary, "Label", &estimator.Env{Parallelism: 3})
	assert.Equal(t, "Weight", ova.WeightColumn())

	_, err = ova.Fit(context.Background(), d)
	require.NoError(t, err)
	require.Len(t, binary.seen, 3)
	for _, w := range binary.seen {
		assert.Equal(t, []float64{1, 2, 0.5}, w)
	}

	unweighted := &weightedBinary{}
	_, err = estimator.NewOneVersusAll(unweighted, "Label", nil).Fit(context.Background(), d)
	require.NoError(t, err)
	for _, w := range unweighted.seen {
		assert.Nil(t, w)
	}
}

func TestOneVersusAllRejectsInvalidWeights(t *testing.T) {
	d, err := dataset.LoadCSV(strings.NewReader("x,Label,Weight\n0,a,1\n1,b,heavy\n"), "Label", "Weight")
	require.NoError(t, err)

	binary := &weightedBinary{column: "Weight"}
	_, err = estimator.NewOneVersusAll(binary, "Label", nil).Fit(context.Background(), d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid weight "heavy"`)
	assert.Empty(t, binary.seen)
}
