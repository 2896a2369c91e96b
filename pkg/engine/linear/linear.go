// Package linear implements the linear learners: averaged perceptron, linear
// SVM, logistic SGD variants, L-BFGS logistic regression and two multiclass
// softmax learners. All of them standardize features on the training data.
package linear

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/mimir-aip/mimir-automl/pkg/estimator"
)

var (
	ErrNoExamples       = errors.New("no training examples")
	ErrLengthMismatch   = errors.New("labels or weights do not match feature rows")
	ErrSingleClassLabel = errors.New("binary labels contain a single class")
)

// standardizer maps raw features to zero mean and unit variance. Missing
// values (NaN) become 0 after the shift, i.e. the training mean.
type standardizer struct {
	mean  []float64
	scale []float64
}

func fitStandardizer(x *mat.Dense) standardizer {
	rows, cols := x.Dims()
	s := standardizer{mean: make([]float64, cols), scale: make([]float64, cols)}
	col := make([]float64, 0, rows)
	for j := 0; j < cols; j++ {
		col = col[:0]
		for i := 0; i < rows; i++ {
			if v := x.At(i, j); !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		s.scale[j] = 1
		if len(col) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(col, nil)
		s.mean[j] = mean
		if std > 1e-12 && !math.IsNaN(std) {
			s.scale[j] = 1 / std
		}
	}
	return s
}

func (s standardizer) apply(dst, row []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(row))
	}
	for j, v := range row {
		if math.IsNaN(v) {
			dst[j] = 0
			continue
		}
		dst[j] = (v - s.mean[j]) * s.scale[j]
	}
	return dst
}

// transform returns standardized training rows
func (s standardizer) transform(x *mat.Dense) [][]float64 {
	rows, _ := x.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = s.apply(nil, x.RawRowView(i))
	}
	return out
}

// linearScorer scores w·x + b on standardized features
type linearScorer struct {
	std  standardizer
	w    []float64
	bias float64
}

func (l *linearScorer) Score(row []float64) float64 {
	return floats.Dot(l.w, l.std.apply(nil, row)) + l.bias
}

// Weights returns the learned coefficients in standardized feature space
func (l *linearScorer) Weights() []float64 {
	return append([]float64(nil), l.w...)
}

func (l *linearScorer) Bias() float64 {
	return l.bias
}

// checkBinary validates FitBinary inputs and fills in unit weights
func checkBinary(x *mat.Dense, labels []bool, weights []float64) ([]float64, error) {
	if x == nil {
		return nil, ErrNoExamples
	}
	rows, _ := x.Dims()
	if rows == 0 {
		return nil, ErrNoExamples
	}
	if len(labels) != rows || (weights != nil && len(weights) != rows) {
		return nil, ErrLengthMismatch
	}

	pos := 0
	for _, l := range labels {
		if l {
			pos++
		}
	}
	if pos == 0 || pos == rows {
		return nil, ErrSingleClassLabel
	}

	if weights == nil {
		weights = make([]float64, rows)
		for i := range weights {
			weights[i] = 1
		}
	}
	return weights, nil
}

func sign(b bool) float64 {
	if b {
		return 1
	}
	return -1
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// logLoss is log(1 + exp(-m)) computed without overflow
func logLoss(m float64) float64 {
	if m > 0 {
		return math.Log1p(math.Exp(-m))
	}
	return -m + math.Log1p(math.Exp(m))
}

func seedOf(env *estimator.Env) int64 {
	if env == nil {
		return 0
	}
	return env.Seed
}

// newRand is called once per fit so concurrent fits never share a generator
func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// visitOrder returns the example order for one epoch
func visitOrder(n int, shuffle bool, rng *rand.Rand) []int {
	if shuffle {
		return rng.Perm(n)
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

// softmaxModel is a trained multiclass linear model over standardized features
type softmaxModel struct {
	std     standardizer
	classes []string
	w       *mat.Dense // classes x features
	bias    []float64
}

func (m *softmaxModel) Classes() []string {
	return append([]string(nil), m.classes...)
}

// Scores returns the per-class logits
func (m *softmaxModel) Scores(row []float64) []float64 {
	x := m.std.apply(nil, row)
	scores := make([]float64, len(m.classes))
	for k := range scores {
		scores[k] = floats.Dot(m.w.RawRowView(k), x) + m.bias[k]
	}
	return scores
}

func (m *softmaxModel) Predict(row []float64) string {
	return m.classes[estimator.Argmax(m.Scores(row))]
}

// Probabilities returns the softmax of the logits
func (m *softmaxModel) Probabilities(row []float64) []float64 {
	scores := m.Scores(row)
	lse := floats.LogSumExp(scores)
	for k := range scores {
		scores[k] = math.Exp(scores[k] - lse)
	}
	return scores
}
