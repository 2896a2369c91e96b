package models

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the root of every configuration error: bad hyperparameter
// assignments, unregistered trainers and unusable nested learners. These are
// deterministic and never retried.
var ErrConfiguration = errors.New("configuration error")

// TrainerName is the canonical serialization name of a trainer extension
type TrainerName string

const (
	TrainerAveragedPerceptron TrainerName = "AveragedPerceptron"
	TrainerFastForest         TrainerName = "FastForest"
	TrainerFastTree           TrainerName = "FastTree"
	TrainerLinearSvm          TrainerName = "LinearSvm"
	TrainerLogisticRegression TrainerName = "LogisticRegression"
	TrainerSgd                TrainerName = "Sgd"
	TrainerSymSgd             TrainerName = "SymSgd"

	TrainerAveragedPerceptronOva TrainerName = "AveragedPerceptronOva"
	TrainerFastForestOva         TrainerName = "FastForestOva"
	TrainerFastTreeOva           TrainerName = "FastTreeOva"
	TrainerLinearSvmOva          TrainerName = "LinearSvmOva"
	TrainerLogisticRegressionOva TrainerName = "LogisticRegressionOva"
	TrainerSgdOva                TrainerName = "SgdOva"
	TrainerSymSgdOva             TrainerName = "SymSgdOva"

	TrainerLightGbmMulti           TrainerName = "LightGbmMulti"
	TrainerSdcaMulti               TrainerName = "SdcaMulti"
	TrainerLogisticRegressionMulti TrainerName = "LogisticRegressionMulti"
)

// TrainerKind describes how a trainer produces its classifier
type TrainerKind string

const (
	TrainerKindBinary     TrainerKind = "binary"     // Binary learner, used nested inside OVA
	TrainerKindOva        TrainerKind = "ova"        // Binary learner reduced to multiclass
	TrainerKindMulticlass TrainerKind = "multiclass" // Natively multiclass learner
)

// ColumnInformation binds the label and optional example-weight columns of a
// training request
type ColumnInformation struct {
	LabelColumn  string  `json:"label_column" yaml:"label_column"`
	WeightColumn *string `json:"weight_column,omitempty" yaml:"weight_column,omitempty"`
}

// NewColumnInformation returns column bindings with no weight column
func NewColumnInformation(labelColumn string) ColumnInformation {
	return ColumnInformation{LabelColumn: labelColumn}
}

// WithWeight returns a copy bound to the given weight column
func (c ColumnInformation) WithWeight(weightColumn string) ColumnInformation {
	c.WeightColumn = &weightColumn
	return c
}

// Weight returns the weight column name, if one is bound
func (c ColumnInformation) Weight() (string, bool) {
	if c.WeightColumn == nil || *c.WeightColumn == "" {
		return "", false
	}
	return *c.WeightColumn, true
}

// Validate checks if the ColumnInformation is valid
func (c ColumnInformation) Validate() error {
	if c.LabelColumn == "" {
		return fmt.Errorf("%w: label column is required", ErrConfiguration)
	}
	if w, ok := c.Weight(); ok && w == c.LabelColumn {
		return fmt.Errorf("%w: weight column %q must differ from the label column", ErrConfiguration, w)
	}
	return nil
}
