package models

import (
	"fmt"
	"time"
)

// SweepStatus represents the current status of a hyperparameter sweep
type SweepStatus string

const (
	SweepStatusRunning   SweepStatus = "running"   // Trials are being executed
	SweepStatusCompleted SweepStatus = "completed" // All trials finished, at least one succeeded
	SweepStatusFailed    SweepStatus = "failed"    // No trial succeeded or the sweep was aborted
)

// TrialStatus represents the outcome of a single trial
type TrialStatus string

const (
	TrialStatusSucceeded TrialStatus = "succeeded"
	TrialStatusFailed    TrialStatus = "failed"
)

// Sweep is one automated model search over a set of trainers
type Sweep struct {
	ID            string            `json:"id"`
	Trainers      []TrainerName     `json:"trainers"`
	Trials        int               `json:"trials"` // Requested trial count
	Columns       ColumnInformation `json:"columns"`
	Seed          int64             `json:"seed"`
	TrainRatio    float64           `json:"train_ratio"`
	DataSource    string            `json:"data_source,omitempty"`
	Status        SweepStatus       `json:"status"`
	BestTrialID   string            `json:"best_trial_id,omitempty"`
	BestScore     float64           `json:"best_score"`
	Error         string            `json:"error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	TrialsRun     int               `json:"trials_run"`
	TrialsFailed  int               `json:"trials_failed"`
	ElapsedMillis int64             `json:"elapsed_ms"`
}

// TrialMetrics holds multiclass evaluation metrics computed on the test split
type TrialMetrics struct {
	MicroAccuracy float64 `json:"micro_accuracy"`
	MacroAccuracy float64 `json:"macro_accuracy"`
	TestRows      int     `json:"test_rows"`
	Classes       int     `json:"classes"`
}

// Trial is a single sampled configuration trained and evaluated within a sweep
type Trial struct {
	ID          string        `json:"id"`
	SweepID     string        `json:"sweep_id"`
	Index       int           `json:"index"`
	TrainerName TrainerName   `json:"trainer_name"`
	Node        *PipelineNode `json:"pipeline_node,omitempty"`
	Metrics     *TrialMetrics `json:"metrics,omitempty"`
	Status      TrialStatus   `json:"status"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   time.Time     `json:"created_at"`
}

// SweepRequest describes a sweep to run
type SweepRequest struct {
	Trainers     []TrainerName `json:"trainers" yaml:"trainers"`
	Trials       int           `json:"trials" yaml:"trials"`
	LabelColumn  string        `json:"label_column" yaml:"label_column"`
	WeightColumn *string       `json:"weight_column,omitempty" yaml:"weight_column,omitempty"`
	Seed         int64         `json:"seed" yaml:"seed"`
	TrainRatio   float64       `json:"train_ratio" yaml:"train_ratio"`
	DataSource   string        `json:"data_source,omitempty" yaml:"data_source,omitempty"`
}

// Columns returns the column bindings of the request
func (r *SweepRequest) Columns() ColumnInformation {
	cols := NewColumnInformation(r.LabelColumn)
	if r.WeightColumn != nil && *r.WeightColumn != "" {
		cols = cols.WithWeight(*r.WeightColumn)
	}
	return cols
}

// Validate checks if the SweepRequest is valid
func (r *SweepRequest) Validate() error {
	if len(r.Trainers) == 0 {
		return fmt.Errorf("%w: at least one trainer is required", ErrConfiguration)
	}
	for _, name := range r.Trainers {
		if name == "" {
			return fmt.Errorf("%w: trainer name must not be empty", ErrConfiguration)
		}
	}
	if r.Trials <= 0 {
		return fmt.Errorf("%w: trials must be positive", ErrConfiguration)
	}
	if r.TrainRatio <= 0 || r.TrainRatio >= 1 {
		return fmt.Errorf("%w: train ratio must be between 0 and 1 (exclusive)", ErrConfiguration)
	}
	return r.Columns().Validate()
}
