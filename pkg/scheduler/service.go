package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/mimir-aip/mimir-automl/pkg/logging"
	"github.com/mimir-aip/mimir-automl/pkg/metadatastore"
	"github.com/mimir-aip/mimir-automl/pkg/models"
	"github.com/mimir-aip/mimir-automl/pkg/search"
)

// SweepRunner runs a sweep over a data file
type SweepRunner interface {
	RunFile(ctx context.Context, path string, req models.SweepRequest) (*search.Result, error)
}

// Service provides recurring sweep scheduling operations
type Service struct {
	store   metadatastore.MetadataStore
	runner  SweepRunner
	cron    *cron.Cron
	mu      sync.Mutex
	entries map[string]cron.EntryID // Maps schedule ID to cron entry ID
	ctx     context.Context
	logger  *logging.FieldLogger
}

// NewService creates a new scheduler service
func NewService(store metadatastore.MetadataStore, runner SweepRunner, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:   store,
		runner:  runner,
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
		ctx:     context.Background(),
		logger:  logger.WithFields(logging.Component("scheduler")),
	}
}

// Start schedules every enabled sweep schedule and starts the cron loop.
// Sweeps triggered by the loop run under ctx.
func (s *Service) Start(ctx context.Context) error {
	schedules, err := s.store.ListSchedules()
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	for _, schedule := range schedules {
		if schedule.Enabled {
			if err := s.schedule(schedule); err != nil {
				s.logger.Error("Error scheduling sweep", err, logging.String("schedule", schedule.Name))
			}
		}
	}

	s.cron.Start()
	s.logger.Info("Sweep scheduler started", logging.Int("schedules", len(s.entries)))
	return nil
}

// Stop stops the cron loop and waits for running sweeps to return
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Sweep scheduler stopped")
}

// Create creates a new sweep schedule
func (s *Service) Create(schedule *models.SweepSchedule) (*models.SweepSchedule, error) {
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	spec, err := parse(schedule.CronSchedule)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created := *schedule
	created.ID = uuid.New().String()
	created.CreatedAt = now
	created.UpdatedAt = now
	created.LastRun = nil
	created.LastSweepID = ""
	created.LastError = ""
	if created.Enabled {
		next := spec.Next(now)
		created.NextRun = &next
	}

	if err := s.store.SaveSchedule(&created); err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}

	if created.Enabled {
		if err := s.schedule(&created); err != nil {
			s.logger.Warn("Failed to schedule sweep", logging.String("schedule", created.Name), logging.Err(err))
		}
	}

	return &created, nil
}

// Get retrieves a schedule by ID
func (s *Service) Get(id string) (*models.SweepSchedule, error) {
	return s.store.GetSchedule(id)
}

// List lists all sweep schedules
func (s *Service) List() ([]*models.SweepSchedule, error) {
	return s.store.ListSchedules()
}

// Update changes a sweep schedule and reschedules it
func (s *Service) Update(id string, req *models.SweepScheduleUpdateRequest) (*models.SweepSchedule, error) {
	schedule, err := s.store.GetSchedule(id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		schedule.Name = *req.Name
	}
	if req.CronSchedule != nil {
		schedule.CronSchedule = *req.CronSchedule
	}
	if req.DataPath != nil {
		schedule.DataPath = *req.DataPath
	}
	if req.Request != nil {
		schedule.Request = *req.Request
	}
	if req.Enabled != nil {
		schedule.Enabled = *req.Enabled
	}

	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	spec, err := parse(schedule.CronSchedule)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	schedule.UpdatedAt = now
	if schedule.Enabled {
		next := spec.Next(now)
		schedule.NextRun = &next
	} else {
		schedule.NextRun = nil
	}

	if err := s.store.SaveSchedule(schedule); err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}

	s.unschedule(id)
	if schedule.Enabled {
		if err := s.schedule(schedule); err != nil {
			s.logger.Warn("Failed to schedule sweep", logging.String("schedule", schedule.Name), logging.Err(err))
		}
	}

	return schedule, nil
}

// Delete deletes a sweep schedule
func (s *Service) Delete(id string) error {
	s.unschedule(id)
	return s.store.DeleteSchedule(id)
}

// RunNow executes the schedule's sweep immediately and returns the updated
// schedule. A failed sweep is recorded in LastError, not returned.
func (s *Service) RunNow(ctx context.Context, id string) (*models.SweepSchedule, error) {
	return s.execute(ctx, id)
}

// Scheduled reports whether the schedule currently has a cron entry
func (s *Service) Scheduled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

func parse(expr string) (cron.Schedule, error) {
	spec, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cron expression: %v", models.ErrConfiguration, err)
	}
	return spec, nil
}

// schedule registers a schedule with the cron loop
func (s *Service) schedule(schedule *models.SweepSchedule) error {
	spec, err := parse(schedule.CronSchedule)
	if err != nil {
		return err
	}

	id := schedule.ID
	job := func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if _, err := s.execute(ctx, id); err != nil {
			s.logger.Error("Error executing scheduled sweep", err, logging.String("schedule_id", id))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[id]; ok {
		s.cron.Remove(old)
	}
	s.entries[id] = s.cron.Schedule(spec, cron.FuncJob(job))

	s.logger.Info("Scheduled sweep",
		logging.String("schedule", schedule.Name),
		logging.String("schedule_id", id),
		logging.String("cron", schedule.CronSchedule))
	return nil
}

func (s *Service) unschedule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}

// execute runs one sweep for the schedule, reloading it first so edits made
// since it was registered apply
func (s *Service) execute(ctx context.Context, id string) (*models.SweepSchedule, error) {
	schedule, err := s.store.GetSchedule(id)
	if err != nil {
		return nil, err
	}

	logger := s.logger.WithFields(logging.String("schedule", schedule.Name))
	logger.Info("Executing scheduled sweep", logging.String("data_path", schedule.DataPath))

	now := time.Now().UTC()
	schedule.LastRun = &now
	if spec, err := parse(schedule.CronSchedule); err == nil && schedule.Enabled {
		next := spec.Next(now)
		schedule.NextRun = &next
	}

	result, err := s.runner.RunFile(ctx, schedule.DataPath, schedule.Request)
	if result != nil && result.Sweep != nil {
		schedule.LastSweepID = result.Sweep.ID
	}
	switch {
	case err != nil:
		schedule.LastError = err.Error()
		logger.Error("Scheduled sweep failed", err)
	case result.Sweep.Status != models.SweepStatusCompleted:
		schedule.LastError = result.Sweep.Error
		logger.Warn("Scheduled sweep finished without a model", logging.String("sweep_id", result.Sweep.ID))
	default:
		schedule.LastError = ""
		logger.Info("Scheduled sweep completed",
			logging.String("sweep_id", result.Sweep.ID),
			logging.Float("best_score", result.Sweep.BestScore))
	}

	schedule.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveSchedule(schedule); err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}
	return schedule, nil
}
