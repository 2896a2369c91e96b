// Package dataset holds training data as a dense feature matrix plus named
// string columns (labels, weights) that are not features.
package dataset

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrColumnNotFound = errors.New("column not found")
	ErrEmptyDataset   = errors.New("dataset has no rows")
)

// Dataset is immutable once built; Split and Subset return new datasets
type Dataset struct {
	features     *mat.Dense
	featureNames []string
	columns      map[string][]string
	columnNames  []string
}

// New builds a dataset from a feature matrix and extra columns. Every extra
// column must have one value per matrix row.
func New(featureNames []string, features *mat.Dense, columns map[string][]string) (*Dataset, error) {
	if features == nil {
		return nil, ErrEmptyDataset
	}
	rows, cols := features.Dims()
	if len(featureNames) != cols {
		return nil, fmt.Errorf("got %d feature names for %d feature columns", len(featureNames), cols)
	}

	d := &Dataset{
		features:     features,
		featureNames: append([]string(nil), featureNames...),
		columns:      make(map[string][]string, len(columns)),
	}
	for name, values := range columns {
		if len(values) != rows {
			return nil, fmt.Errorf("column %s has %d values, expected %d", name, len(values), rows)
		}
		d.columns[name] = values
		d.columnNames = append(d.columnNames, name)
	}
	return d, nil
}

// Rows returns the number of examples
func (d *Dataset) Rows() int {
	r, _ := d.features.Dims()
	return r
}

// Features returns the feature matrix; callers must not modify it
func (d *Dataset) Features() *mat.Dense {
	return d.features
}

func (d *Dataset) FeatureNames() []string {
	return append([]string(nil), d.featureNames...)
}

// Row returns the feature vector of one example
func (d *Dataset) Row(i int) []float64 {
	return d.features.RawRowView(i)
}

// Column returns the values of a non-feature column
func (d *Dataset) Column(name string) ([]string, error) {
	values, ok := d.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return values, nil
}

// Weights parses a non-feature column as example weights
func (d *Dataset) Weights(name string) ([]float64, error) {
	values, err := d.Column(name)
	if err != nil {
		return nil, err
	}
	weights := make([]float64, len(values))
	for i, v := range values {
		w, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s row %d: invalid weight %q", name, i, v)
		}
		if w < 0 {
			return nil, fmt.Errorf("column %s row %d: negative weight %v", name, i, w)
		}
		weights[i] = w
	}
	return weights, nil
}

// Subset returns a dataset holding the given rows in the given order. rows
// must not be empty.
func (d *Dataset) Subset(rows []int) *Dataset {
	_, cols := d.features.Dims()
	features := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		features.SetRow(i, d.features.RawRowView(r))
	}

	out := &Dataset{
		features:     features,
		featureNames: d.featureNames,
		columns:      make(map[string][]string, len(d.columns)),
		columnNames:  d.columnNames,
	}
	for name, values := range d.columns {
		sub := make([]string, len(rows))
		for i, r := range rows {
			sub[i] = values[r]
		}
		out.columns[name] = sub
	}
	return out
}

// Split shuffles the rows with the given seed and cuts them into a training
// and a test dataset. Both sides get at least one row.
func (d *Dataset) Split(trainRatio float64, seed int64) (*Dataset, *Dataset, error) {
	n := d.Rows()
	if n < 2 {
		return nil, nil, fmt.Errorf("need at least 2 rows to split, got %d", n)
	}
	if trainRatio <= 0 || trainRatio >= 1 {
		return nil, nil, fmt.Errorf("train ratio must be between 0 and 1 (exclusive), got %v", trainRatio)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	cut := int(float64(n) * trainRatio)
	cut = min(max(cut, 1), n-1)

	return d.Subset(perm[:cut]), d.Subset(perm[cut:]), nil
}
