// Package search runs hyperparameter sweeps: it samples assignments from the
// trainers' declared ranges, trains and scores each trial on a held-out split
// and records the winning pipeline node.
package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mimir-aip/mimir-automl/pkg/dataset"
	"github.com/mimir-aip/mimir-automl/pkg/estimator"
	"github.com/mimir-aip/mimir-automl/pkg/hyperparam"
	"github.com/mimir-aip/mimir-automl/pkg/logging"
	"github.com/mimir-aip/mimir-automl/pkg/metadatastore"
	"github.com/mimir-aip/mimir-automl/pkg/models"
	"github.com/mimir-aip/mimir-automl/pkg/trainer"
)

// Options tune how a Runner executes trials
type Options struct {
	Workers     int    // Concurrent trials, at least 1
	Parallelism int    // Per-class fits inside one-versus-all trainers
	PythonPath  string // Interpreter for child-process engines
	Logger      *logging.Logger
}

// Runner executes sweeps against a trainer catalog. A nil store keeps results
// in memory only.
type Runner struct {
	catalog *trainer.Catalog
	store   metadatastore.MetadataStore
	opts    Options
	logger  *logging.FieldLogger
}

// Result is the outcome of one sweep
type Result struct {
	Sweep  *models.Sweep
	Trials []*models.Trial
	Best   *models.Trial
}

// NewRunner creates a new sweep runner
func NewRunner(catalog *trainer.Catalog, store metadatastore.MetadataStore, opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{
		catalog: catalog,
		store:   store,
		opts:    opts,
		logger:  logger.WithFields(logging.Component("search")),
	}
}

// NewSweep validates the request and creates the sweep record in running
// state, without training anything yet
func (r *Runner) NewSweep(req models.SweepRequest) (*models.Sweep, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	for _, name := range req.Trainers {
		if _, err := r.catalog.Lookup(name); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	sweep := &models.Sweep{
		ID:         uuid.New().String(),
		Trainers:   append([]models.TrainerName(nil), req.Trainers...),
		Trials:     req.Trials,
		Columns:    req.Columns(),
		Seed:       req.Seed,
		TrainRatio: req.TrainRatio,
		DataSource: req.DataSource,
		Status:     models.SweepStatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if r.store != nil {
		if err := r.store.SaveSweep(sweep); err != nil {
			return nil, fmt.Errorf("failed to save sweep: %w", err)
		}
	}
	return sweep, nil
}

// Run creates a sweep for the request and executes it on data
func (r *Runner) Run(ctx context.Context, data *dataset.Dataset, req models.SweepRequest) (*Result, error) {
	sweep, err := r.NewSweep(req)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, sweep, data)
}

// LoadData reads a CSV file, keeping the label and weight columns out of the
// feature matrix
func LoadData(path string, cols models.ColumnInformation) (*dataset.Dataset, error) {
	nonFeature := []string{cols.LabelColumn}
	if weight, ok := cols.Weight(); ok {
		nonFeature = append(nonFeature, weight)
	}
	return dataset.LoadCSVFile(path, nonFeature...)
}

// RunFile loads a CSV file and runs the request on it
func (r *Runner) RunFile(ctx context.Context, path string, req models.SweepRequest) (*Result, error) {
	data, err := LoadData(path, req.Columns())
	if err != nil {
		return nil, err
	}
	if req.DataSource == "" {
		req.DataSource = path
	}
	return r.Run(ctx, data, req)
}

// plan is one trial's trainer and sampled assignment, drawn up front so the
// sweep is reproducible whatever the worker count
type plan struct {
	index  int
	name   models.TrainerName
	ext    trainer.Extension
	params models.Assignment
}

func (r *Runner) plans(sweep *models.Sweep) ([]plan, error) {
	rng := rand.New(rand.NewSource(sweep.Seed))
	plans := make([]plan, sweep.Trials)
	for i := range plans {
		name := sweep.Trainers[i%len(sweep.Trainers)]
		ext, err := r.catalog.Lookup(name)
		if err != nil {
			return nil, err
		}
		plans[i] = plan{
			index:  i,
			name:   name,
			ext:    ext,
			params: hyperparam.Sample(ext.HyperparamSweepRanges(), rng),
		}
	}
	return plans, nil
}

// Execute trains every trial of a sweep created by NewSweep. Failed trials are
// recorded and do not stop the sweep; a cancelled context does.
func (r *Runner) Execute(ctx context.Context, sweep *models.Sweep, data *dataset.Dataset) (*Result, error) {
	logger := r.logger.WithFields(logging.String("sweep_id", sweep.ID))
	start := time.Now()

	result := &Result{Sweep: sweep}
	plans, err := r.plans(sweep)
	if err != nil {
		return result, r.fail(sweep, start, err)
	}

	train, test, err := data.Split(sweep.TrainRatio, sweep.Seed)
	if err != nil {
		return result, r.fail(sweep, start, err)
	}

	logger.Info("Starting sweep",
		logging.Int("trials", sweep.Trials),
		logging.Int("train_rows", train.Rows()),
		logging.Int("test_rows", test.Rows()))

	trials := make([]*models.Trial, len(plans))
	var mu sync.Mutex
	var best *models.Trial

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, p := range plans {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			trial := r.runTrial(gctx, sweep, p, train, test)
			if err := gctx.Err(); err != nil {
				return err
			}
			trials[p.index] = trial

			if r.store != nil {
				if err := r.store.SaveTrial(trial); err != nil {
					return fmt.Errorf("failed to save trial %d: %w", p.index, err)
				}
			}

			if trial.Status == models.TrialStatusFailed {
				logger.Warn("Trial failed",
					logging.Int("index", p.index),
					logging.String("trainer", string(p.name)),
					logging.String("error", trial.Error))
				return nil
			}

			logger.Debug("Trial completed",
				logging.Int("index", p.index),
				logging.String("trainer", string(p.name)),
				logging.Float("micro_accuracy", trial.Metrics.MicroAccuracy),
				logging.Duration("duration", trial.Duration))

			mu.Lock()
			if better(trial, best) {
				best = trial
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		result.Trials = compact(trials)
		return result, r.fail(sweep, start, err)
	}

	result.Trials = trials
	result.Best = best
	r.finish(sweep, start, trials, best)
	if r.store != nil {
		if err := r.store.SaveSweep(sweep); err != nil {
			return result, fmt.Errorf("failed to save sweep: %w", err)
		}
	}

	if best == nil {
		logger.Warn("Sweep finished without a successful trial", logging.Int("trials_failed", sweep.TrialsFailed))
	} else {
		logger.Info("Sweep completed",
			logging.String("best_trainer", string(best.TrainerName)),
			logging.Float("best_score", sweep.BestScore),
			logging.Int("trials_failed", sweep.TrialsFailed),
			logging.Int("elapsed_ms", int(sweep.ElapsedMillis)))
	}
	return result, nil
}

func (r *Runner) runTrial(ctx context.Context, sweep *models.Sweep, p plan, train, test *dataset.Dataset) *models.Trial {
	start := time.Now()
	trial := &models.Trial{
		ID:          uuid.New().String(),
		SweepID:     sweep.ID,
		Index:       p.index,
		TrainerName: p.name,
		CreatedAt:   start.UTC(),
	}

	err := func() error {
		node, err := p.ext.CreatePipelineNode(p.params, sweep.Columns)
		if err != nil {
			return err
		}
		trial.Node = node

		env := &estimator.Env{
			Seed:        sweep.Seed + int64(p.index),
			Parallelism: r.opts.Parallelism,
			PythonPath:  r.opts.PythonPath,
		}
		est, err := p.ext.CreateInstance(env, p.params, sweep.Columns)
		if err != nil {
			return err
		}
		model, err := est.Fit(ctx, train)
		if err != nil {
			return err
		}
		metrics, err := estimator.Evaluate(model, test, sweep.Columns.LabelColumn)
		if err != nil {
			return err
		}
		trial.Metrics = &metrics
		return nil
	}()

	trial.Duration = time.Since(start)
	if err != nil {
		trial.Status = models.TrialStatusFailed
		trial.Error = err.Error()
		return trial
	}
	trial.Status = models.TrialStatusSucceeded
	return trial
}

// better reports whether a outscores b. Ties keep the earlier trial.
func better(a, b *models.Trial) bool {
	if b == nil {
		return true
	}
	if a.Metrics.MicroAccuracy != b.Metrics.MicroAccuracy {
		return a.Metrics.MicroAccuracy > b.Metrics.MicroAccuracy
	}
	return a.Index < b.Index
}

func (r *Runner) finish(sweep *models.Sweep, start time.Time, trials []*models.Trial, best *models.Trial) {
	now := time.Now().UTC()
	sweep.TrialsRun = len(trials)
	sweep.TrialsFailed = 0
	for _, t := range trials {
		if t.Status == models.TrialStatusFailed {
			sweep.TrialsFailed++
		}
	}
	sweep.UpdatedAt = now
	sweep.CompletedAt = &now
	sweep.ElapsedMillis = time.Since(start).Milliseconds()

	if best == nil {
		sweep.Status = models.SweepStatusFailed
		sweep.Error = "no trial succeeded"
		return
	}
	sweep.Status = models.SweepStatusCompleted
	sweep.BestTrialID = best.ID
	sweep.BestScore = best.Metrics.MicroAccuracy
}

// fail marks the sweep as failed and persists it, returning cause
func (r *Runner) fail(sweep *models.Sweep, start time.Time, cause error) error {
	now := time.Now().UTC()
	sweep.Status = models.SweepStatusFailed
	sweep.Error = cause.Error()
	sweep.UpdatedAt = now
	sweep.CompletedAt = &now
	sweep.ElapsedMillis = time.Since(start).Milliseconds()

	r.logger.Error("Sweep failed", cause, logging.String("sweep_id", sweep.ID))
	if r.store != nil {
		if err := r.store.SaveSweep(sweep); err != nil {
			return errors.Join(cause, fmt.Errorf("failed to save sweep: %w", err))
		}
	}
	return cause
}

func compact(trials []*models.Trial) []*models.Trial {
	out := make([]*models.Trial, 0, len(trials))
	for _, t := range trials {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// BestNode returns the pipeline node of the sweep's best trial
func (r *Runner) BestNode(sweepID string) (*models.PipelineNode, error) {
	if r.store == nil {
		return nil, fmt.Errorf("sweep %w: %s", metadatastore.ErrNotFound, sweepID)
	}
	sweep, err := r.store.GetSweep(sweepID)
	if err != nil {
		return nil, err
	}
	if sweep.BestTrialID == "" {
		return nil, fmt.Errorf("best trial %w: sweep %s has no successful trial", metadatastore.ErrNotFound, sweepID)
	}
	trial, err := r.store.GetTrial(sweep.BestTrialID)
	if err != nil {
		return nil, err
	}
	return trial.Node, nil
}
