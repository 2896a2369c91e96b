package models

import (
	"fmt"
	"time"
)

// SweepSchedule represents a recurring sweep over a data file (cron-based)
type SweepSchedule struct {
	ID           string       `json:"id" yaml:"-"`
	Name         string       `json:"name" yaml:"name"`
	CronSchedule string       `json:"cron_schedule" yaml:"cron_schedule"` // Cron expression
	DataPath     string       `json:"data_path" yaml:"data_path"`
	Request      SweepRequest `json:"request" yaml:"request"`
	Enabled      bool         `json:"enabled" yaml:"enabled"`
	CreatedAt    time.Time    `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time    `json:"updated_at" yaml:"-"`
	NextRun      *time.Time   `json:"next_run,omitempty" yaml:"-"`
	LastRun      *time.Time   `json:"last_run,omitempty" yaml:"-"`
	LastSweepID  string       `json:"last_sweep_id,omitempty" yaml:"-"`
	LastError    string       `json:"last_error,omitempty" yaml:"-"`
}

// Validate checks if the SweepSchedule is valid
func (s *SweepSchedule) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrConfiguration)
	}
	if s.CronSchedule == "" {
		return fmt.Errorf("%w: cron_schedule is required", ErrConfiguration)
	}
	if s.DataPath == "" {
		return fmt.Errorf("%w: data_path is required", ErrConfiguration)
	}
	return s.Request.Validate()
}

// SweepScheduleUpdateRequest holds the fields of a schedule to change; nil
// fields are left as they are
type SweepScheduleUpdateRequest struct {
	Name         *string       `json:"name,omitempty"`
	CronSchedule *string       `json:"cron_schedule,omitempty"`
	DataPath     *string       `json:"data_path,omitempty"`
	Request      *SweepRequest `json:"request,omitempty"`
	Enabled      *bool         `json:"enabled,omitempty"`
}
