// Package estimator defines the training contracts the trainer extensions hand
// out, and the one-versus-all reduction that turns a binary scorer into a
// multiclass classifier.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/mimir-aip/mimir-automl/pkg/dataset"
)

var (
	ErrTooFewClasses = errors.New("label column needs at least two classes")
	ErrNotBinary     = errors.New("binary estimator needs exactly two classes")
)

// Env carries process-level settings into the estimators a trainer builds
type Env struct {
	Seed        int64
	Parallelism int    // Concurrent per-class fits in one-versus-all, <= 1 is sequential
	PythonPath  string // Interpreter for engines trained in a child process
}

// NewEnv creates an Env with the given seed and sequential training
func NewEnv(seed int64) *Env {
	return &Env{Seed: seed, Parallelism: 1}
}

// Rand returns a generator seeded from the environment; a nil Env seeds with 0
func (e *Env) Rand() *rand.Rand {
	if e == nil {
		return rand.New(rand.NewSource(0))
	}
	return rand.New(rand.NewSource(e.Seed))
}

// Python returns the configured interpreter, python3 when unset
func (e *Env) Python() string {
	if e == nil || e.PythonPath == "" {
		return "python3"
	}
	return e.PythonPath
}

func (e *Env) parallelism() int {
	if e == nil || e.Parallelism < 1 {
		return 1
	}
	return e.Parallelism
}

// Estimator is an untrained, reusable training blueprint
type Estimator interface {
	Fit(ctx context.Context, data *dataset.Dataset) (Model, error)
}

// Model is a trained multiclass classifier
type Model interface {
	Classes() []string
	Scores(row []float64) []float64
	Predict(row []float64) string
}

// ScoringModel is a trained binary classifier producing a real-valued score,
// higher meaning more likely positive
type ScoringModel interface {
	Score(row []float64) float64
}

// BinaryEstimator is an estimator whose output is a float score, which makes
// it usable inside one-versus-all
type BinaryEstimator interface {
	Estimator
	FitBinary(ctx context.Context, features *mat.Dense, labels []bool, weights []float64) (ScoringModel, error)
}

// WeightedEstimator is implemented by estimators configured with an
// example-weight column
type WeightedEstimator interface {
	WeightColumn() string
}

// DistinctClasses returns the distinct labels in order of first appearance
// together with each row's class index
func DistinctClasses(labels []string) ([]string, []int) {
	var classes []string
	seen := make(map[string]int)
	idx := make([]int, len(labels))
	for i, l := range labels {
		k, ok := seen[l]
		if !ok {
			k = len(classes)
			seen[l] = k
			classes = append(classes, l)
		}
		idx[i] = k
	}
	return classes, idx
}

// Argmax returns the index of the highest score; ties go to the lowest index
func Argmax(scores []float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}

// FitBinaryColumns trains a binary estimator on a dataset with a two-class
// label column. Boolean labels map true to positive; otherwise the second
// class in order of appearance is positive.
func FitBinaryColumns(ctx context.Context, b BinaryEstimator, data *dataset.Dataset, labelColumn, weightColumn string) (Model, error) {
	labels, err := data.Column(labelColumn)
	if err != nil {
		return nil, err
	}

	var weights []float64
	if weightColumn != "" {
		weights, err = data.Weights(weightColumn)
		if err != nil {
			return nil, err
		}
	}

	classes, positive, err := binaryLabels(labels)
	if err != nil {
		return nil, err
	}

	m, err := b.FitBinary(ctx, data.Features(), positive, weights)
	if err != nil {
		return nil, err
	}
	return &binaryModel{classes: classes, scorer: m}, nil
}

func binaryLabels(labels []string) ([]string, []bool, error) {
	classes, idx := DistinctClasses(labels)
	if len(classes) != 2 {
		return nil, nil, fmt.Errorf("%w: got %d", ErrNotBinary, len(classes))
	}

	first, err1 := strconv.ParseBool(classes[0])
	_, err2 := strconv.ParseBool(classes[1])
	if err1 == nil && err2 == nil && first {
		classes[0], classes[1] = classes[1], classes[0]
		for i := range idx {
			idx[i] = 1 - idx[i]
		}
	}

	positive := make([]bool, len(idx))
	for i, k := range idx {
		positive[i] = k == 1
	}
	return classes, positive, nil
}

// binaryModel presents a scorer as a two-class model: [negative, positive]
type binaryModel struct {
	classes []string
	scorer  ScoringModel
}

func (m *binaryModel) Classes() []string {
	return append([]string(nil), m.classes...)
}

func (m *binaryModel) Scores(row []float64) []float64 {
	s := m.scorer.Score(row)
	return []float64{-s, s}
}

func (m *binaryModel) Predict(row []float64) string {
	return m.classes[Argmax(m.Scores(row))]
}
