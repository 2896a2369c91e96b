package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mimir-aip/mimir-automl/pkg/logging"
	"github.com/mimir-aip/mimir-automl/pkg/metadatastore"
	"github.com/mimir-aip/mimir-automl/pkg/models"
	"github.com/mimir-aip/mimir-automl/pkg/search"
)

type fakeRunner struct {
	mu    sync.Mutex
	paths []string
	err   error
	sweep *models.Sweep
}

func (f *fakeRunner) RunFile(ctx context.Context, path string, req models.SweepRequest) (*search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	if f.err != nil {
		return &search.Result{Sweep: &models.Sweep{ID: "failed-sweep", Status: models.SweepStatusFailed}}, f.err
	}
	return &search.Result{Sweep: f.sweep}, nil
}

func setupService(t *testing.T, runner SweepRunner) *Service {
	t.Helper()
	store, err := metadatastore.NewSQLiteStore(filepath.Join(t.TempDir(), "scheduler.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := logging.NewLogger()
	logger.SetOutput(&strings.Builder{})
	return NewService(store, runner, logger)
}

func testSchedule() *models.SweepSchedule {
	return &models.SweepSchedule{
		Name:         "nightly",
		CronSchedule: "0 3 * * *",
		DataPath:     "/data/train.csv",
		Enabled:      true,
		Request: models.SweepRequest{
			Trainers:    []models.TrainerName{models.TrainerSdcaMulti},
			Trials:      5,
			LabelColumn: "Label",
			TrainRatio:  0.8,
		},
	}
}

func TestCreateSchedulesEnabled(t *testing.T) {
	svc := setupService(t, &fakeRunner{})

	created, err := svc.Create(testSchedule())
	if err != nil {
		t.Fatalf("Failed to create schedule: %v", err)
	}
	if created.ID == "" {
		t.Error("Expected schedule ID to be set")
	}
	if created.NextRun == nil {
		t.Error("Expected NextRun to be set for an enabled schedule")
	}
	if !svc.Scheduled(created.ID) {
		t.Error("Expected enabled schedule to be registered with cron")
	}

	got, err := svc.Get(created.ID)
	if err != nil {
		t.Fatalf("Failed to get schedule: %v", err)
	}
	if got.Name != "nightly" {
		t.Errorf("Expected name 'nightly', got '%s'", got.Name)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := setupService(t, &fakeRunner{})

	bad := testSchedule()
	bad.CronSchedule = "not a cron"
	if _, err := svc.Create(bad); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("Expected configuration error for bad cron, got %v", err)
	}

	missing := testSchedule()
	missing.DataPath = ""
	if _, err := svc.Create(missing); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("Expected configuration error for missing data path, got %v", err)
	}
}

func TestUpdateDisablesAndReenables(t *testing.T) {
	svc := setupService(t, &fakeRunner{})
	created, err := svc.Create(testSchedule())
	if err != nil {
		t.Fatalf("Failed to create schedule: %v", err)
	}

	disabled := false
	updated, err := svc.Update(created.ID, &models.SweepScheduleUpdateRequest{Enabled: &disabled})
	if err != nil {
		t.Fatalf("Failed to update schedule: %v", err)
	}
	if updated.NextRun != nil {
		t.Error("Expected NextRun to be cleared for a disabled schedule")
	}
	if svc.Scheduled(created.ID) {
		t.Error("Expected disabled schedule to be removed from cron")
	}

	enabled := true
	hourly := "@hourly"
	if _, err := svc.Update(created.ID, &models.SweepScheduleUpdateRequest{Enabled: &enabled, CronSchedule: &hourly}); err != nil {
		t.Fatalf("Failed to re-enable schedule: %v", err)
	}
	if !svc.Scheduled(created.ID) {
		t.Error("Expected re-enabled schedule to be registered")
	}

	got, _ := svc.Get(created.ID)
	if got.CronSchedule != "@hourly" {
		t.Errorf("Expected cron '@hourly', got '%s'", got.CronSchedule)
	}
}

func TestRunNowRecordsOutcome(t *testing.T) {
	runner := &fakeRunner{sweep: &models.Sweep{ID: "sweep-1", Status: models.SweepStatusCompleted, BestScore: 0.9}}
	svc := setupService(t, runner)
	created, err := svc.Create(testSchedule())
	if err != nil {
		t.Fatalf("Failed to create schedule: %v", err)
	}

	got, err := svc.RunNow(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Failed to run schedule: %v", err)
	}
	if got.LastRun == nil {
		t.Error("Expected LastRun to be set")
	}
	if got.LastSweepID != "sweep-1" {
		t.Errorf("Expected LastSweepID 'sweep-1', got '%s'", got.LastSweepID)
	}
	if got.LastError != "" {
		t.Errorf("Expected no error, got '%s'", got.LastError)
	}
	if len(runner.paths) != 1 || runner.paths[0] != "/data/train.csv" {
		t.Errorf("Expected one run on /data/train.csv, got %v", runner.paths)
	}

	runner.err = errors.New("data file missing")
	got, err = svc.RunNow(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Failed to run schedule: %v", err)
	}
	if got.LastError != "data file missing" {
		t.Errorf("Expected LastError 'data file missing', got '%s'", got.LastError)
	}
	if got.LastSweepID != "failed-sweep" {
		t.Errorf("Expected LastSweepID 'failed-sweep', got '%s'", got.LastSweepID)
	}

	stored, _ := svc.Get(created.ID)
	if stored.LastError != "data file missing" {
		t.Errorf("Expected stored LastError, got '%s'", stored.LastError)
	}
}

func TestStartLoadsEnabledSchedules(t *testing.T) {
	svc := setupService(t, &fakeRunner{})

	first, err := svc.Create(testSchedule())
	if err != nil {
		t.Fatalf("Failed to create schedule: %v", err)
	}
	off := testSchedule()
	off.Enabled = false
	second, err := svc.Create(off)
	if err != nil {
		t.Fatalf("Failed to create schedule: %v", err)
	}

	restarted := NewService(svc.store, svc.runner, logging.NewLogger())
	restarted.logger = svc.logger
	if err := restarted.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start scheduler: %v", err)
	}
	defer restarted.Stop()

	if !restarted.Scheduled(first.ID) {
		t.Error("Expected enabled schedule to be loaded")
	}
	if restarted.Scheduled(second.ID) {
		t.Error("Expected disabled schedule to stay unscheduled")
	}
}

func TestDeleteSchedule(t *testing.T) {
	svc := setupService(t, &fakeRunner{})
	created, err := svc.Create(testSchedule())
	if err != nil {
		t.Fatalf("Failed to create schedule: %v", err)
	}

	if err := svc.Delete(created.ID); err != nil {
		t.Fatalf("Failed to delete schedule: %v", err)
	}
	if svc.Scheduled(created.ID) {
		t.Error("Expected deleted schedule to be unscheduled")
	}
	if _, err := svc.Get(created.ID); !errors.Is(err, metadatastore.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
