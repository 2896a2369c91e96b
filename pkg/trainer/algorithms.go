package trainer

import (
	"github.com/mimir-aip/mimir-automl/pkg/engine/boosting"
	"github.com/mimir-aip/mimir-automl/pkg/engine/forest"
	"github.com/mimir-aip/mimir-automl/pkg/engine/linear"
	"github.com/mimir-aip/mimir-automl/pkg/estimator"
	"github.com/mimir-aip/mimir-automl/pkg/hyperparam"
	"github.com/mimir-aip/mimir-automl/pkg/models"
)

// Algorithm is one row of the algorithm table
type Algorithm struct {
	Name models.TrainerName
	Kind models.TrainerKind // TrainerKindBinary or TrainerKindMulticlass

	// Ranges returns a fresh copy of the declared search space
	Ranges func() []models.SweepableParam

	// SupportsWeight reports whether the algorithm reads an example weight
	// column. Build never sees a weight column otherwise.
	SupportsWeight bool

	// Build constructs the estimator from a resolved assignment
	Build func(env *estimator.Env, v hyperparam.Values, cols models.ColumnInformation) (estimator.Estimator, error)
}

// Algorithms returns the registered algorithm table
func Algorithms() []Algorithm {
	return []Algorithm{
		{
			Name:   models.TrainerAveragedPerceptron,
			Kind:   models.TrainerKindBinary,
			Ranges: hyperparam.AveragedPerceptron,
			Build: func(env *estimator.Env, v hyperparam.Values, cols models.ColumnInformation) (estimator.Estimator, error) {
				return linear.NewAveragedPerceptron(linear.AveragedPerceptronOptions{
					LabelColumn:            cols.LabelColumn,
					LearningRate:           v.Float("learningRate"),
					DecreaseLearningRate:   v.Bool("decreaseLearningRate"),
					L2RegularizerWeight:    v.Float("l2RegularizerWeight"),
					NumberOfIterations:     v.Int("numberOfIterations"),
					InitialWeightsDiameter: v.Float("initialWeightsDiameter"),
					Shuffle:                v.Bool("shuffle"),
				}, env), nil
			},
		},
		{
			Name:   models.TrainerFastForest,
			Kind:   models.TrainerKindBinary,
			Ranges: hyperparam.FastForest,
			Build: func(env *estimator.Env, v hyperparam.Values, cols models.ColumnInformation) (estimator.Estimator, error) {
				return forest.NewRandomForest(forest.RandomForestOptions{
					LabelColumn:                cols.LabelColumn,
					NumberOfTrees:              v.Int("numberOfTrees"),
					NumberOfLeaves:             v.Int("numLeaves"),
					MinimumExampleCountPerLeaf: v.Int("minimumExampleCountPerLeaf"),
					FeatureFraction:            v.Float("featureFraction"),
				}, env), nil
			},
		},
		{
			Name:   models.TrainerFastTree,
			Kind:   models.TrainerKindBinary,
			Ranges: hyperparam.FastTree,
			Build: func(env *estimator.Env, v hyperparam.Values, cols models.ColumnInformation) (estimator.Estimator, error) {
				return forest.NewBoostedTrees(forest.BoostedTreesOptions{
					LabelColumn:                cols.LabelColumn,
					NumberOfTrees:              v.Int("numberOfTrees"),
					NumberOfLeaves:             v.Int("numLeaves"),
					MinimumExampleCountPerLeaf: v.Int("minimumExampleCountPerLeaf"),
					LearningRate:               v.Float("learningRate"),
					FeatureFraction:            v.Float("featureFraction"),
				}, env), nil
			},
		},
		{
			Name:   models.TrainerLinearSvm,
			Kind:   models.TrainerKindBinary,
			Ranges: hyperparam.LinearSvm,
			Build: func(env *estimator.Env, v hyperparam.Values, cols models.ColumnInformation) (estimator.Estimator, error) {
				return linear.NewLinearSvm(linear.LinearSvmOptions{
					LabelColumn:        cols.LabelColumn,
					Lambda:             v.Float("lambda"),
					PerformProjection:  v.Bool("performProjection"),
					NoBias:             v.Bool("noBias"),
					NumberOfIterations: v.Int("numberOfIterations"),
				}, env), nil
			},
		},
		{
			Name:           models.TrainerLogisticRegression,
			Kind:           models.TrainerKindBinary,
			Ranges:         hyperparam.LogisticRegression,
			SupportsWeight: true,
			Build: func(env *estimator.Env, v hyperparam.Values, cols models.ColumnInformation) (estimator.Estimator, error) {
				opts := logisticOptions(v, cols)
				opts.WeightColumn, _ = cols.Weight()
				return linear.NewLogisticRegression(opts), nil
			},
		},
		{
			Name:           models.TrainerSgd,
			Kind:           models.TrainerKindBinary,
			Ranges:         hyperparam.Sgd,
			SupportsWeight: true,
			Build: func(env *estimator.Env, v hyperparam.Values, cols models.ColumnInformation) (estimator.Estimator, error) {
				opts := linear.SgdOptions{
					LabelColumn:          cols.LabelColumn,
					L2Weight:             v.Float("l2Weight"),
					ConvergenceTolerance: v.Float("convergenceTolerance"),
					NumberOfIterations:   v.Int("numberOfIterations"),
					LearningRate:         v.Float("learningRate"),
					Shuffle:              v.Bool("shuffle"),
				}
				opts.WeightColumn, _ = cols.Weight()
				return linear.NewSgd(opts, env), nil
			},
		},
		{
			Name:   models.TrainerSymSgd,
			Kind:   models.TrainerKindBinary,
			Ranges: hyperparam.SymSgd,
			Build: func(env *estimator.Env, v hyperparam.Values, cols models.ColumnInformation) (estimator.Estimator, error) {
				return linear.NewSymSgd(linear.SymSgdOptions{
					LabelColumn:        cols.LabelColumn,
					NumberOfIterations: v.Int("numberOfIterations"),
					LearningRate:       v.FloatOr("learningRate", 0),
					L2Regularization:   v.Float("l2Regularization"),
					UpdateFrequency:    v.IntOr("updateFrequency", 0),
					Shuffle:            v.Bool("shuffle"),
				}, env), nil
			},
		},
		{
			Name:           models.TrainerLightGbmMulti,
			Kind:           models.TrainerKindMulticlass,
			Ranges:         hyperparam.LightGbm,
			SupportsWeight: true,
			Build: func(env *estimator.Env, v hyperparam.Values, cols models.ColumnInformation) (estimator.Estimator, error) {
				opts := boosting.LightGbmOptions{
					LabelColumn:                       cols.LabelColumn,
					NumberOfIterations:                v.Int("numBoostRound"),
					LearningRate:                      v.Float("learningRate"),
					NumberOfLeaves:                    v.Int("numLeaves"),
					MinimumExampleCountPerGroup:       v.Int("minDataPerGroup"),
					MaximumCategoricalSplitPointCount: v.Int("maxCatThreshold"),
					CategoricalSmoothing:              float64(v.Int("catSmooth")),
					L2CategoricalRegularization:       v.Float("catL2"),
					L2Regularization:                  v.Float("l2Regularization"),
					L1Regularization:                  v.Float("l1Regularization"),
				}
				opts.WeightColumn, _ = cols.Weight()
				if !v.IsAuto("useSoftmax") {
					softmax := v.Bool("useSoftmax")
					opts.UseSoftmax = &softmax
				}
				return boosting.NewLightGbm(opts, env), nil
			},
		},
		{
			Name:   models.TrainerSdcaMulti,
			Kind:   models.TrainerKindMulticlass,
			Ranges: hyperparam.Sdca,
			Build: func(env *estimator.Env, v hyperparam.Values, cols models.ColumnInformation) (estimator.Estimator, error) {
				return linear.NewSdca(linear.SdcaOptions{
					LabelColumn:          cols.LabelColumn,
					L2Const:              v.FloatOr("l2Const", 0),
					L1Threshold:          v.FloatOr("l1Threshold", 0),
					ConvergenceTolerance: v.Float("convergenceTolerance"),
					MaxIterations:        v.IntOr("maxIterations", 0),
					Shuffle:              v.Bool("shuffle"),
					BiasLearningRate:     v.Float("biasLearningRate"),
				}, env), nil
			},
		},
		{
			Name:           models.TrainerLogisticRegressionMulti,
			Kind:           models.TrainerKindMulticlass,
			Ranges:         hyperparam.LogisticRegression,
			SupportsWeight: true,
			Build: func(env *estimator.Env, v hyperparam.Values, cols models.ColumnInformation) (estimator.Estimator, error) {
				opts := logisticOptions(v, cols)
				opts.WeightColumn, _ = cols.Weight()
				return linear.NewMultinomial(opts), nil
			},
		},
	}
}

func logisticOptions(v hyperparam.Values, cols models.ColumnInformation) linear.LogisticRegressionOptions {
	return linear.LogisticRegressionOptions{
		LabelColumn:   cols.LabelColumn,
		OptTol:        v.Float("optTol"),
		L2Weight:      v.Float("l2Weight"),
		L1Weight:      v.Float("l1Weight"),
		MemorySize:    v.Int("memorySize"),
		MaxIterations: v.Int("maxIterations"),
	}
}
