package metadatastore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mimir-aip/mimir-automl/pkg/models"
)

// SQLiteStore provides SQLite-based persistence for sweeps, trials and schedules
type SQLiteStore struct {
	db *sql.DB
}

var _ MetadataStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite-based storage instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Format: file:path?_pragma=name(value)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Search workers write trials concurrently; writes are serialized by
	// SQLite anyway
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}

	// In-memory databases use "memory" or "delete" mode, which is acceptable for testing
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return nil, fmt.Errorf("failed to check journal mode: %w", err)
	}
	if journalMode != "wal" && journalMode != "delete" && journalMode != "memory" {
		return nil, fmt.Errorf("unexpected journal mode: got %s", journalMode)
	}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// retryOnBusy retries a database operation if it fails due to SQLITE_BUSY,
// on top of the busy_timeout pragma
func (s *SQLiteStore) retryOnBusy(operation func() error, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if strings.Contains(err.Error(), "SQLITE_BUSY") {
			// Exponential backoff: 10ms, 20ms, 40ms, 80ms, 160ms
			backoff := time.Duration(10*(1<<uint(i))) * time.Millisecond
			time.Sleep(backoff)
			continue
		}

		return err
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, err)
}

// initSchema creates the database schema if it doesn't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sweeps (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		best_trial_id TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trials (
		id TEXT PRIMARY KEY,
		sweep_id TEXT NOT NULL,
		trial_index INTEGER NOT NULL,
		trainer_name TEXT NOT NULL,
		status TEXT NOT NULL,
		micro_accuracy REAL,
		pipeline_node TEXT,
		created_at DATETIME NOT NULL,
		data TEXT NOT NULL,
		FOREIGN KEY (sweep_id) REFERENCES sweeps(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_trials_sweep_id ON trials(sweep_id);

	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		cron_schedule TEXT NOT NULL,
		enabled INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		last_run DATETIME,
		data TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveSweep saves a sweep to the database
func (s *SQLiteStore) SaveSweep(sweep *models.Sweep) error {
	data, err := json.Marshal(sweep)
	if err != nil {
		return fmt.Errorf("failed to marshal sweep: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO sweeps (id, status, best_trial_id, created_at, updated_at, data)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	err = s.retryOnBusy(func() error {
		_, execErr := s.db.Exec(query,
			sweep.ID,
			sweep.Status,
			sweep.BestTrialID,
			sweep.CreatedAt,
			sweep.UpdatedAt,
			string(data),
		)
		return execErr
	}, 5)
	if err != nil {
		return fmt.Errorf("failed to save sweep: %w", err)
	}

	return nil
}

// GetSweep retrieves a sweep by ID
func (s *SQLiteStore) GetSweep(id string) (*models.Sweep, error) {
	var data string
	query := `SELECT data FROM sweeps WHERE id = ?`

	err := s.db.QueryRow(query, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sweep %w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sweep: %w", err)
	}

	var sweep models.Sweep
	if err := json.Unmarshal([]byte(data), &sweep); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sweep: %w", err)
	}

	return &sweep, nil
}

// ListSweeps lists all sweeps, newest first
func (s *SQLiteStore) ListSweeps() ([]*models.Sweep, error) {
	query := `SELECT data FROM sweeps ORDER BY created_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweeps: %w", err)
	}
	defer rows.Close()

	sweeps := make([]*models.Sweep, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}

		var sweep models.Sweep
		if err := json.Unmarshal([]byte(data), &sweep); err != nil {
			continue
		}

		sweeps = append(sweeps, &sweep)
	}

	return sweeps, rows.Err()
}

// DeleteSweep deletes a sweep and its trials
func (s *SQLiteStore) DeleteSweep(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM trials WHERE sweep_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete trials: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sweeps WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete sweep: %w", err)
	}
	return tx.Commit()
}

// SaveTrial saves a trial to the database. The pipeline node is also kept in
// its own column so it can be exported without decoding the trial.
func (s *SQLiteStore) SaveTrial(trial *models.Trial) error {
	data, err := json.Marshal(trial)
	if err != nil {
		return fmt.Errorf("failed to marshal trial: %w", err)
	}

	var node, accuracy any
	if trial.Node != nil {
		byt, err := json.Marshal(trial.Node)
		if err != nil {
			return fmt.Errorf("failed to marshal pipeline node: %w", err)
		}
		node = string(byt)
	}
	if trial.Metrics != nil {
		accuracy = trial.Metrics.MicroAccuracy
	}

	query := `
		INSERT OR REPLACE INTO trials (id, sweep_id, trial_index, trainer_name, status, micro_accuracy, pipeline_node, created_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	// Trials of one sweep are saved concurrently by the search workers
	err = s.retryOnBusy(func() error {
		_, execErr := s.db.Exec(query,
			trial.ID,
			trial.SweepID,
			trial.Index,
			trial.TrainerName,
			trial.Status,
			accuracy,
			node,
			trial.CreatedAt,
			string(data),
		)
		return execErr
	}, 5)
	if err != nil {
		return fmt.Errorf("failed to save trial: %w", err)
	}

	return nil
}

// GetTrial retrieves a trial by ID
func (s *SQLiteStore) GetTrial(id string) (*models.Trial, error) {
	var data string
	query := `SELECT data FROM trials WHERE id = ?`

	err := s.db.QueryRow(query, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trial %w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trial: %w", err)
	}

	var trial models.Trial
	if err := json.Unmarshal([]byte(data), &trial); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trial: %w", err)
	}

	return &trial, nil
}

// ListTrialsBySweep lists the trials of a sweep in trial order
func (s *SQLiteStore) ListTrialsBySweep(sweepID string) ([]*models.Trial, error) {
	query := `SELECT data FROM trials WHERE sweep_id = ? ORDER BY trial_index ASC`

	rows, err := s.db.Query(query, sweepID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trials: %w", err)
	}
	defer rows.Close()

	trials := make([]*models.Trial, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}

		var trial models.Trial
		if err := json.Unmarshal([]byte(data), &trial); err != nil {
			continue
		}

		trials = append(trials, &trial)
	}

	return trials, rows.Err()
}

// SaveSchedule saves a sweep schedule to the database
func (s *SQLiteStore) SaveSchedule(schedule *models.SweepSchedule) error {
	data, err := json.Marshal(schedule)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}

	enabled := 0
	if schedule.Enabled {
		enabled = 1
	}

	query := `
		INSERT OR REPLACE INTO schedules (id, name, cron_schedule, enabled, created_at, last_run, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	// Use retry logic for schedule saves since they can happen concurrently during scheduled execution
	err = s.retryOnBusy(func() error {
		_, execErr := s.db.Exec(query,
			schedule.ID,
			schedule.Name,
			schedule.CronSchedule,
			enabled,
			schedule.CreatedAt,
			schedule.LastRun,
			string(data),
		)
		return execErr
	}, 5)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	return nil
}

// GetSchedule retrieves a schedule by ID
func (s *SQLiteStore) GetSchedule(id string) (*models.SweepSchedule, error) {
	var data string
	query := `SELECT data FROM schedules WHERE id = ?`

	err := s.db.QueryRow(query, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("schedule %w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	var schedule models.SweepSchedule
	if err := json.Unmarshal([]byte(data), &schedule); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
	}

	return &schedule, nil
}

// ListSchedules lists all schedules
func (s *SQLiteStore) ListSchedules() ([]*models.SweepSchedule, error) {
	query := `SELECT data FROM schedules ORDER BY created_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	schedules := make([]*models.SweepSchedule, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}

		var schedule models.SweepSchedule
		if err := json.Unmarshal([]byte(data), &schedule); err != nil {
			continue
		}

		schedules = append(schedules, &schedule)
	}

	return schedules, rows.Err()
}

// DeleteSchedule deletes a schedule
func (s *SQLiteStore) DeleteSchedule(id string) error {
	query := `DELETE FROM schedules WHERE id = ?`
	_, err := s.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return nil
}
