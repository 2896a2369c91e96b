package metadatastore

import (
	"errors"

	"github.com/mimir-aip/mimir-automl/pkg/models"
)

var ErrNotFound = errors.New("not found")

// MetadataStore is the interface for sweep metadata persistence.
// It stores sweeps, their trials with pipeline nodes, and sweep schedules.
type MetadataStore interface {
	// Sweep operations
	SaveSweep(sweep *models.Sweep) error
	GetSweep(id string) (*models.Sweep, error)
	ListSweeps() ([]*models.Sweep, error)
	DeleteSweep(id string) error

	// Trial operations
	SaveTrial(trial *models.Trial) error
	GetTrial(id string) (*models.Trial, error)
	ListTrialsBySweep(sweepID string) ([]*models.Trial, error)

	// Schedule operations
	SaveSchedule(schedule *models.SweepSchedule) error
	GetSchedule(id string) (*models.SweepSchedule, error)
	ListSchedules() ([]*models.SweepSchedule, error)
	DeleteSchedule(id string) error
}
