package estimator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mimir-aip/mimir-automl/pkg/dataset"
)

// OneVersusAll trains one copy of a binary estimator per class (that class
// positive, every other class negative) and predicts the class whose model
// scores highest
type OneVersusAll struct {
	binary       BinaryEstimator
	labelColumn  string
	weightColumn string
	parallelism  int
}

// NewOneVersusAll wraps a binary estimator. Every per-class model is trained
// with the binary estimator's weight column, if it has one.
func NewOneVersusAll(binary BinaryEstimator, labelColumn string, env *Env) *OneVersusAll {
	o := &OneVersusAll{
		binary:      binary,
		labelColumn: labelColumn,
		parallelism: env.parallelism(),
	}
	if w, ok := binary.(WeightedEstimator); ok {
		o.weightColumn = w.WeightColumn()
	}
	return o
}

// Binary returns the wrapped binary estimator
func (o *OneVersusAll) Binary() BinaryEstimator {
	return o.binary
}

func (o *OneVersusAll) LabelColumn() string {
	return o.labelColumn
}

// WeightColumn returns the example-weight column, "" when unweighted
func (o *OneVersusAll) WeightColumn() string {
	return o.weightColumn
}

// Fit trains the per-class models; classes are ordered by first appearance
func (o *OneVersusAll) Fit(ctx context.Context, data *dataset.Dataset) (Model, error) {
	labels, err := data.Column(o.labelColumn)
	if err != nil {
		return nil, err
	}

	classes, idx := DistinctClasses(labels)
	if len(classes) < 2 {
		return nil, fmt.Errorf("%w: %s has %d", ErrTooFewClasses, o.labelColumn, len(classes))
	}

	var weights []float64
	if o.weightColumn != "" {
		if weights, err = data.Weights(o.weightColumn); err != nil {
			return nil, err
		}
	}

	features := data.Features()
	scorers := make([]ScoringModel, len(classes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)
	for k := range classes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			positive := make([]bool, len(idx))
			for i, c := range idx {
				positive[i] = c == k
			}
			m, err := o.binary.FitBinary(ctx, features, positive, weights)
			if err != nil {
				return fmt.Errorf("failed to fit class %q: %w", classes[k], err)
			}
			scorers[k] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &OvaModel{classes: classes, scorers: scorers}, nil
}

// OvaModel is a trained one-versus-all classifier
type OvaModel struct {
	classes []string
	scorers []ScoringModel
}

func (m *OvaModel) Classes() []string {
	return append([]string(nil), m.classes...)
}

func (m *OvaModel) Scores(row []float64) []float64 {
	scores := make([]float64, len(m.scorers))
	for k, s := range m.scorers {
		scores[k] = s.Score(row)
	}
	return scores
}

// Predict returns the highest scoring class; ties go to the class seen first
func (m *OvaModel) Predict(row []float64) string {
	return m.classes[Argmax(m.Scores(row))]
}
