// Package trainer exposes the training algorithms to the model search as
// trainer extensions: each declares its sweep ranges, builds a multiclass
// estimator for an assignment and records a configuration as a pipeline node.
package trainer

import (
	"fmt"

	"github.com/mimir-aip/mimir-automl/pkg/estimator"
	"github.com/mimir-aip/mimir-automl/pkg/hyperparam"
	"github.com/mimir-aip/mimir-automl/pkg/models"
)

// Extension is the capability contract every trainer implements
type Extension interface {
	// HyperparamSweepRanges returns a fresh copy of the declared search space
	HyperparamSweepRanges() []models.SweepableParam

	// CreateInstance builds an untrained estimator for the assignment
	CreateInstance(env *estimator.Env, params models.Assignment, cols models.ColumnInformation) (estimator.Estimator, error)

	// CreatePipelineNode records the assignment and column bindings
	CreatePipelineNode(params models.Assignment, cols models.ColumnInformation) (*models.PipelineNode, error)
}

// AlgorithmExtension exposes one algorithm of the table directly, as a binary
// learner or a native multiclass learner
type AlgorithmExtension struct {
	alg     Algorithm
	catalog *Catalog
}

// NewAlgorithmExtension creates an extension resolving its name through the
// given catalog
func NewAlgorithmExtension(alg Algorithm, catalog *Catalog) *AlgorithmExtension {
	return &AlgorithmExtension{alg: alg, catalog: catalog}
}

func (e *AlgorithmExtension) Algorithm() Algorithm {
	return e.alg
}

func (e *AlgorithmExtension) HyperparamSweepRanges() []models.SweepableParam {
	return e.alg.Ranges()
}

func (e *AlgorithmExtension) CreateInstance(env *estimator.Env, params models.Assignment, cols models.ColumnInformation) (estimator.Estimator, error) {
	if err := cols.Validate(); err != nil {
		return nil, err
	}
	values, err := hyperparam.Resolve(e.alg.Ranges(), params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.alg.Name, err)
	}
	return e.alg.Build(env, values, e.columns(cols))
}

func (e *AlgorithmExtension) CreatePipelineNode(params models.Assignment, cols models.ColumnInformation) (*models.PipelineNode, error) {
	if err := cols.Validate(); err != nil {
		return nil, err
	}
	if err := hyperparam.Validate(e.alg.Ranges(), params); err != nil {
		return nil, fmt.Errorf("%s: %w", e.alg.Name, err)
	}
	name, err := e.catalog.TrainerName(e)
	if err != nil {
		return nil, err
	}

	cols = e.columns(cols)
	node := &models.PipelineNode{
		TrainerName:     name,
		Hyperparameters: params.Clone(),
		LabelColumn:     cols.LabelColumn,
	}
	if w, ok := cols.Weight(); ok {
		node.WeightColumn = &w
	}
	return node, nil
}

// columns drops the weight column when the algorithm cannot use it
func (e *AlgorithmExtension) columns(cols models.ColumnInformation) models.ColumnInformation {
	if !e.alg.SupportsWeight {
		cols.WeightColumn = nil
	}
	return cols
}

// OvaExtension turns a binary extension into a multiclass one through the
// one-versus-all reduction. It shares the nested extension's sweep ranges.
type OvaExtension struct {
	nested  Extension
	catalog *Catalog
}

func NewOvaExtension(nested Extension, catalog *Catalog) *OvaExtension {
	return &OvaExtension{nested: nested, catalog: catalog}
}

// Nested returns the per-class learner
func (o *OvaExtension) Nested() Extension {
	return o.nested
}

func (o *OvaExtension) HyperparamSweepRanges() []models.SweepableParam {
	return o.nested.HyperparamSweepRanges()
}

func (o *OvaExtension) CreateInstance(env *estimator.Env, params models.Assignment, cols models.ColumnInformation) (estimator.Estimator, error) {
	est, err := o.nested.CreateInstance(env, params, cols)
	if err != nil {
		return nil, err
	}

	binary, ok := est.(estimator.BinaryEstimator)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotBinaryScorer, est)
	}
	return estimator.NewOneVersusAll(binary, cols.LabelColumn, env), nil
}

func (o *OvaExtension) CreatePipelineNode(params models.Assignment, cols models.ColumnInformation) (*models.PipelineNode, error) {
	name, err := o.catalog.TrainerName(o)
	if err != nil {
		return nil, err
	}

	nested, err := o.nested.CreatePipelineNode(params, cols)
	if err != nil {
		return nil, err
	}

	return &models.PipelineNode{
		TrainerName:      name,
		Hyperparameters:  params.Clone(),
		LabelColumn:      cols.LabelColumn,
		NestedBinaryNode: nested,
	}, nil
}
