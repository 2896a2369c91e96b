package dataset_test

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimir-aip/mimir-automl/pkg/dataset"
)

const irisLike = `sepal,petal,Label,Weight
5.1,1.4,setosa,1
7.0,4.7,versicolor,2
6.3,6.0,virginica,0.5
4.9,,setosa,1
`

func TestLoadCSV(t *testing.T) {
	d, err := dataset.LoadCSV(strings.NewReader(irisLike), "Label", "Weight")
	require.NoError(t, err)

	assert.Equal(t, 4, d.Rows())
	assert.Equal(t, []string{"sepal", "petal"}, d.FeatureNames())
	assert.Equal(t, []float64{7.0, 4.7}, d.Row(1))
	assert.True(t, math.IsNaN(d.Row(3)[1]))

	labels, err := d.Column("Label")
	require.NoError(t, err)
	assert.Equal(t, []string{"setosa", "versicolor", "virginica", "setosa"}, labels)

	weights, err := d.Weights("Weight")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 0.5, 1}, weights)
}

func TestLoadCSVErrors(t *testing.T) {
	_, err := dataset.LoadCSV(strings.NewReader(irisLike), "Missing")
	require.ErrorIs(t, err, dataset.ErrColumnNotFound)

	_, err = dataset.LoadCSV(strings.NewReader("a,Label\nx,1\n"), "Label")
	require.Error(t, err)

	_, err = dataset.LoadCSV(strings.NewReader("a,Label\n"), "Label")
	require.ErrorIs(t, err, dataset.ErrEmptyDataset)
}

func TestColumnNotFound(t *testing.T) {
	d, err := dataset.LoadCSV(strings.NewReader(irisLike), "Label")
	require.NoError(t, err)

	_, err = d.Column("Weight")
	require.ErrorIs(t, err, dataset.ErrColumnNotFound)
	_, err = d.Weights("nope")
	require.ErrorIs(t, err, dataset.ErrColumnNotFound)
}

func TestSplitIsDeterministicAndComplete(t *testing.T) {
	d, err := dataset.LoadCSV(strings.NewReader(irisLike), "Label", "Weight")
	require.NoError(t, err)

	train, test, err := d.Split(0.5, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, train.Rows())
	assert.Equal(t, 2, test.Rows())

	again, _, err := d.Split(0.5, 42)
	require.NoError(t, err)
	assert.Equal(t, train.Row(0), again.Row(0))

	trainLabels, _ := train.Column("Label")
	testLabels, _ := test.Column("Label")
	all := append(append([]string{}, trainLabels...), testLabels...)
	assert.ElementsMatch(t, []string{"setosa", "versicolor", "virginica", "setosa"}, all)

	_, _, err = d.Split(1.0, 1)
	require.Error(t, err)
}

func TestSplitKeepsBothSidesNonEmpty(t *testing.T) {
	d, err := dataset.LoadCSV(strings.NewReader(irisLike), "Label")
	require.NoError(t, err)

	train, test, err := d.Split(0.99, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, train.Rows())
	assert.Equal(t, 1, test.Rows())
}
