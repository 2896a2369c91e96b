// Package hyperparam declares the sweepable hyperparameters of each training
// algorithm and resolves, samples and coerces assignments against them.
package hyperparam

import "github.com/mimir-aip/mimir-automl/pkg/models"

// Discrete declares a parameter that takes one of a finite set of values
func Discrete(name string, def any, values ...any) models.SweepableParam {
	return models.SweepableParam{Name: name, Kind: models.ParamKindDiscrete, Values: values, Default: def}
}

// FloatRange declares a continuous parameter. steps > 1 restricts sampling to
// that many evenly spaced grid points.
func FloatRange(name string, min, max float64, steps int, logScale bool, def any) models.SweepableParam {
	return models.SweepableParam{
		Name: name, Kind: models.ParamKindFloat,
		Min: min, Max: max, Steps: steps, LogScale: logScale,
		Default: def,
	}
}

// LongRange declares an integer parameter sampled in stepSize increments, or
// by stepSize multiples when logScale is set.
func LongRange(name string, min, max int, stepSize float64, logScale bool, def any) models.SweepableParam {
	return models.SweepableParam{
		Name: name, Kind: models.ParamKindLong,
		Min: float64(min), Max: float64(max), StepSize: stepSize, LogScale: logScale,
		Default: def,
	}
}

func AveragedPerceptron() []models.SweepableParam {
	return []models.SweepableParam{
		Discrete("learningRate", 1.0, 0.01, 0.1, 0.5, 1.0),
		Discrete("decreaseLearningRate", false, false, true),
		FloatRange("l2RegularizerWeight", 0, 0.4, 5, false, 0.0),
		LongRange("numberOfIterations", 1, 100, 10, true, 10),
		FloatRange("initialWeightsDiameter", 0, 1, 5, false, 0.0),
		Discrete("shuffle", true, true, false),
	}
}

func LinearSvm() []models.SweepableParam {
	return []models.SweepableParam{
		FloatRange("lambda", 0.00001, 0.1, 10, true, 0.001),
		Discrete("performProjection", false, false, true),
		Discrete("noBias", false, false, true),
		LongRange("numberOfIterations", 1, 100, 10, true, 1),
	}
}

// treeParams are shared by the tree ensembles
func treeParams(trees any, learningRate bool) []models.SweepableParam {
	params := []models.SweepableParam{
		LongRange("numLeaves", 2, 128, 4, true, 20),
		Discrete("minimumExampleCountPerLeaf", 10, 1, 10, 50),
		Discrete("numberOfTrees", trees, 20, 100, 500),
	}
	if learningRate {
		params = append(params, FloatRange("learningRate", 0.025, 0.4, 0, true, 0.2))
	}
	return params
}

func FastForest() []models.SweepableParam {
	return append(treeParams(100, false),
		Discrete("featureFraction", 0.7, 0.3, 0.7, 1.0),
	)
}

func FastTree() []models.SweepableParam {
	return append(treeParams(100, true),
		Discrete("featureFraction", 1.0, 0.7, 0.9, 1.0),
	)
}

func LightGbm() []models.SweepableParam {
	return []models.SweepableParam{
		Discrete("numBoostRound", 100, 10, 20, 50, 100, 150, 200),
		FloatRange("learningRate", 0.025, 0.4, 0, true, 0.2),
		LongRange("numLeaves", 2, 128, 4, true, 31),
		Discrete("minDataPerGroup", 100, 10, 50, 100, 200),
		Discrete("maxCatThreshold", 32, 8, 16, 32, 64),
		Discrete("catSmooth", 10, 1, 10, 20),
		Discrete("catL2", 10.0, 0.1, 0.5, 1.0, 5.0, 10.0),
		Discrete("useSoftmax", models.Auto, models.Auto, true, false),
		Discrete("l2Regularization", 0.0, 0.0, 0.5, 1.0),
		Discrete("l1Regularization", 0.0, 0.0, 0.5, 1.0),
	}
}

func Sdca() []models.SweepableParam {
	return []models.SweepableParam{
		Discrete("l2Const", models.Auto, models.Auto, 1e-7, 1e-6, 1e-5, 1e-4, 1e-3, 1e-2),
		Discrete("l1Threshold", models.Auto, models.Auto, 0.0, 0.25, 0.5, 0.75, 1.0, 2.0),
		Discrete("convergenceTolerance", 0.1, 0.001, 0.01, 0.1, 0.2),
		Discrete("maxIterations", models.Auto, models.Auto, 10, 20, 100),
		Discrete("shuffle", true, true, false),
		Discrete("biasLearningRate", 0.0, 0.0, 0.01, 0.1, 1.0),
	}
}

func LogisticRegression() []models.SweepableParam {
	return []models.SweepableParam{
		Discrete("optTol", 1e-7, 1e-4, 1e-7),
		FloatRange("l2Weight", 0, 1, 4, false, 1.0),
		FloatRange("l1Weight", 0, 1, 4, false, 1.0),
		Discrete("memorySize", 20, 5, 20, 50),
		Discrete("maxIterations", 100, 20, 100, 500),
	}
}

func Sgd() []models.SweepableParam {
	return []models.SweepableParam{
		Discrete("l2Weight", 1e-6, 1e-7, 5e-7, 1e-6, 5e-6, 1e-5),
		Discrete("convergenceTolerance", 1e-4, 1e-2, 1e-3, 1e-4, 1e-5),
		Discrete("numberOfIterations", 20, 1, 5, 10, 20),
		FloatRange("learningRate", 0.001, 0.1, 0, true, 0.01),
		Discrete("shuffle", true, true, false),
	}
}

func SymSgd() []models.SweepableParam {
	return []models.SweepableParam{
		Discrete("numberOfIterations", 50, 5, 10, 20, 50),
		Discrete("learningRate", models.Auto, models.Auto, 1e1, 1e0, 1e-1, 1e-2, 1e-3),
		Discrete("l2Regularization", 0.0, 0.0, 1e-6, 1e-4, 1e-2),
		Discrete("updateFrequency", models.Auto, models.Auto, 5, 20),
		Discrete("shuffle", true, true, false),
	}
}

// Defaults returns the assignment holding each declared default. Parameters
// without a default are left out.
func Defaults(ranges []models.SweepableParam) models.Assignment {
	out := make(models.Assignment, len(ranges))
	for _, p := range ranges {
		if p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	return out
}

// Names returns the declared parameter names in declaration order
func Names(ranges []models.SweepableParam) []string {
	names := make([]string, len(ranges))
	for i, p := range ranges {
		names[i] = p.Name
	}
	return names
}

// Clone deep copies a list of declarations
func Clone(ranges []models.SweepableParam) []models.SweepableParam {
	out := make([]models.SweepableParam, len(ranges))
	for i, p := range ranges {
		out[i] = p.Clone()
	}
	return out
}
