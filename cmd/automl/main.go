package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mimir-aip/mimir-automl/pkg/api"
	"github.com/mimir-aip/mimir-automl/pkg/config"
	"github.com/mimir-aip/mimir-automl/pkg/logging"
	"github.com/mimir-aip/mimir-automl/pkg/metadatastore"
	"github.com/mimir-aip/mimir-automl/pkg/models"
	"github.com/mimir-aip/mimir-automl/pkg/scheduler"
	"github.com/mimir-aip/mimir-automl/pkg/search"
	"github.com/mimir-aip/mimir-automl/pkg/trainer"
)

var version = "dev"

const usage = `Usage: automl <command> [flags]

Commands:
  serve      Run the HTTP API and the sweep scheduler
  sweep      Run one sweep over a CSV file and print the best pipeline node
  trainers   List the registered trainers
  ranges     Print a trainer's sweep ranges as YAML
  version    Print the version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Init(cfg.LogLevel, cfg.LogFormat)

	args := os.Args[2:]
	switch os.Args[1] {
	case "serve":
		err = serve(cfg, logger)
	case "sweep":
		err = sweep(cfg, logger, args, os.Stdout, os.Stderr)
	case "trainers":
		err = listTrainers(os.Stdout)
	case "ranges":
		err = ranges(args, os.Stdout)
	case "version", "--version", "-v":
		fmt.Printf("automl %s\n", version)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Fatal("Command failed", err, logging.String("command", os.Args[1]))
	}
}

func serve(cfg *config.Config, logger *logging.Logger) error {
	logger.Info("Starting automl server", logging.String("environment", cfg.Environment), logging.String("version", version))

	store, err := metadatastore.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize SQLite storage: %w", err)
	}
	defer store.Close()
	logger.Info("Initialized SQLite storage", logging.String("path", cfg.DatabasePath))

	catalog := trainer.DefaultCatalog()
	runner := search.NewRunner(catalog, store, search.Options{
		Workers:    cfg.SearchWorkers,
		PythonPath: cfg.PythonPath,
		Logger:     logger,
	})
	sched := scheduler.NewService(store, runner, logger)

	if cfg.SweepSchedule != "" {
		if err := ensureConfigSchedule(sched, cfg, catalog); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	server := api.NewServer(ctx, catalog, runner, store, sched, cfg.DataDir, cfg.Port, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down automl server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down API server", err)
	}
	server.Wait()
	return nil
}

// configScheduleName names the schedule created from SWEEP_SCHEDULE
const configScheduleName = "config"

// ensureConfigSchedule keeps the schedule named by the configuration in sync
// with it, creating it on first start
func ensureConfigSchedule(sched *scheduler.Service, cfg *config.Config, catalog *trainer.Catalog) error {
	req := sweepRequest(cfg, catalog)
	req.DataSource = cfg.SweepDataPath

	schedules, err := sched.List()
	if err != nil {
		return err
	}
	for _, s := range schedules {
		if s.Name != configScheduleName {
			continue
		}
		enabled := true
		_, err := sched.Update(s.ID, &models.SweepScheduleUpdateRequest{
			CronSchedule: &cfg.SweepSchedule,
			DataPath:     &cfg.SweepDataPath,
			Request:      &req,
			Enabled:      &enabled,
		})
		return err
	}

	_, err = sched.Create(&models.SweepSchedule{
		Name:         configScheduleName,
		CronSchedule: cfg.SweepSchedule,
		DataPath:     cfg.SweepDataPath,
		Request:      req,
		Enabled:      true,
	})
	return err
}

// sweepRequest builds a request from the configuration; no configured
// trainers means every multiclass trainer
func sweepRequest(cfg *config.Config, catalog *trainer.Catalog) models.SweepRequest {
	req := models.SweepRequest{
		Trials:      cfg.SearchTrials,
		LabelColumn: cfg.LabelColumn,
		Seed:        cfg.RandomSeed,
		TrainRatio:  cfg.TrainRatio,
	}
	for _, name := range cfg.Trainers {
		req.Trainers = append(req.Trainers, models.TrainerName(name))
	}
	if len(req.Trainers) == 0 {
		req.Trainers = catalog.Multiclass()
	}
	if cfg.WeightColumn != "" {
		weight := cfg.WeightColumn
		req.WeightColumn = &weight
	}
	return req
}

func sweep(cfg *config.Config, logger *logging.Logger, args []string, out, summary io.Writer) error {
	catalog := trainer.DefaultCatalog()
	req := sweepRequest(cfg, catalog)

	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	data := fs.String("data", cfg.SweepDataPath, "CSV file with a header row")
	trainers := fs.String("trainers", "", "Comma separated trainer names (default: configured trainers)")
	fs.IntVar(&req.Trials, "trials", req.Trials, "Number of trials")
	fs.Int64Var(&req.Seed, "seed", req.Seed, "Random seed")
	fs.StringVar(&req.LabelColumn, "label", req.LabelColumn, "Label column")
	weight := fs.String("weight", cfg.WeightColumn, "Weight column")
	workers := fs.Int("workers", cfg.SearchWorkers, "Concurrent trials")
	output := fs.String("out", "-", "Where to write the best pipeline node as YAML, - for stdout")
	persist := fs.Bool("persist", false, "Record the sweep in the metadata database")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *data == "" {
		return errors.New("-data is required")
	}
	if *trainers != "" {
		req.Trainers = nil
		for _, name := range strings.Split(*trainers, ",") {
			if name = strings.TrimSpace(name); name != "" {
				req.Trainers = append(req.Trainers, models.TrainerName(name))
			}
		}
	}
	req.WeightColumn = nil
	if *weight != "" {
		req.WeightColumn = weight
	}

	var store metadatastore.MetadataStore
	if *persist {
		sqlite, err := metadatastore.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
		defer sqlite.Close()
		store = sqlite
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := search.NewRunner(catalog, store, search.Options{
		Workers:    *workers,
		PythonPath: cfg.PythonPath,
		Logger:     logger,
	})
	result, err := runner.RunFile(ctx, *data, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(summary, sweepSummary(result))
	if result.Best == nil {
		return fmt.Errorf("sweep %s: %s", result.Sweep.ID, result.Sweep.Error)
	}

	return writeNode(result.Best.Node, *output, out)
}

func writeNode(node *models.PipelineNode, path string, stdout io.Writer) error {
	byt, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = stdout.Write(byt)
		return err
	}
	return os.WriteFile(path, byt, 0644)
}

func listTrainers(out io.Writer) error {
	_, err := fmt.Fprintln(out, trainerTable(trainer.DefaultCatalog().Entries()))
	return err
}

func ranges(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ranges", flag.ContinueOnError)
	name := fs.String("trainer", "", "Trainer name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return errors.New("-trainer is required")
	}

	ext, err := trainer.DefaultCatalog().Lookup(models.TrainerName(*name))
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(ext.HyperparamSweepRanges()); err != nil {
		return err
	}
	return enc.Close()
}
