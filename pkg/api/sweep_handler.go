package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mimir-aip/mimir-automl/pkg/logging"
	"github.com/mimir-aip/mimir-automl/pkg/metadatastore"
	"github.com/mimir-aip/mimir-automl/pkg/models"
	"github.com/mimir-aip/mimir-automl/pkg/search"
)

// SweepHandler handles sweep HTTP requests
type SweepHandler struct {
	ctx     context.Context
	runner  *search.Runner
	store   metadatastore.MetadataStore
	dataDir string
	logger  *logging.FieldLogger
	running sync.WaitGroup
}

// NewSweepHandler creates a new sweep handler. Sweeps started over HTTP run
// under ctx and read their data from dataDir.
func NewSweepHandler(ctx context.Context, runner *search.Runner, store metadatastore.MetadataStore, dataDir string, logger *logging.FieldLogger) *SweepHandler {
	if logger == nil {
		logger = logging.Default().WithFields(logging.Component("api"))
	}
	return &SweepHandler{
		ctx:     ctx,
		runner:  runner,
		store:   store,
		dataDir: dataDir,
		logger:  logger,
	}
}

// Wait blocks until every sweep started by the handler has returned
func (h *SweepHandler) Wait() {
	h.running.Wait()
}

// HandleSweeps handles requests for /api/sweeps
// GET: List all sweeps
// POST: Start a sweep over a CSV data source
func (h *SweepHandler) HandleSweeps(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodPost:
		h.handleCreate(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSweep handles requests for /api/sweeps/{id}[/trials|/best]
func (h *SweepHandler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sweeps/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Sweep ID required", http.StatusBadRequest)
		return
	}
	sweepID := parts[0]

	if len(parts) == 2 {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch parts[1] {
		case "trials":
			h.handleTrials(w, r, sweepID)
		case "best":
			h.handleBest(w, r, sweepID)
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
		return
	}
	if len(parts) > 2 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r, sweepID)
	case http.MethodDelete:
		h.handleDelete(w, r, sweepID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SweepHandler) handleList(w http.ResponseWriter, r *http.Request) {
	sweeps, err := h.store.ListSweeps()
	if err != nil {
		writeError(w, "Failed to list sweeps", err)
		return
	}
	if sweeps == nil {
		sweeps = []*models.Sweep{}
	}
	writeJSON(w, http.StatusOK, sweeps)
}

func (h *SweepHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.DataSource == "" {
		http.Error(w, "data_source is required", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "Invalid sweep request", err)
		return
	}

	path, err := resolveDataPath(h.dataDir, req.DataSource)
	if err != nil {
		writeError(w, "Invalid data source", err)
		return
	}
	data, err := search.LoadData(path, req.Columns())
	if err != nil {
		h.logger.Error("Failed to load sweep data", err, logging.String("data_source", req.DataSource))
		http.Error(w, fmt.Sprintf("Failed to load data source %q", req.DataSource), http.StatusBadRequest)
		return
	}

	sweep, err := h.runner.NewSweep(req)
	if err != nil {
		writeError(w, "Failed to create sweep", err)
		return
	}

	// Execute mutates the sweep, so the response gets its own copy
	accepted := *sweep
	h.running.Add(1)
	go func() {
		defer h.running.Done()
		h.runner.Execute(h.ctx, sweep, data)
	}()

	writeJSON(w, http.StatusAccepted, &accepted)
}

func (h *SweepHandler) handleGet(w http.ResponseWriter, r *http.Request, sweepID string) {
	sweep, err := h.store.GetSweep(sweepID)
	if err != nil {
		writeError(w, "Sweep not found", err)
		return
	}
	writeJSON(w, http.StatusOK, sweep)
}

func (h *SweepHandler) handleDelete(w http.ResponseWriter, r *http.Request, sweepID string) {
	if err := h.store.DeleteSweep(sweepID); err != nil {
		writeError(w, "Failed to delete sweep", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SweepHandler) handleTrials(w http.ResponseWriter, r *http.Request, sweepID string) {
	if _, err := h.store.GetSweep(sweepID); err != nil {
		writeError(w, "Sweep not found", err)
		return
	}
	trials, err := h.store.ListTrialsBySweep(sweepID)
	if err != nil {
		writeError(w, "Failed to list trials", err)
		return
	}
	if trials == nil {
		trials = []*models.Trial{}
	}
	writeJSON(w, http.StatusOK, trials)
}

// handleBest returns the winning pipeline node, as YAML with ?format=yaml
func (h *SweepHandler) handleBest(w http.ResponseWriter, r *http.Request, sweepID string) {
	node, err := h.runner.BestNode(sweepID)
	if err != nil {
		writeError(w, "Best pipeline node not found", err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, node)
	case "yaml":
		out, err := yaml.Marshal(node)
		if err != nil {
			writeError(w, "Failed to encode pipeline node", err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		w.Write(out)
	default:
		http.Error(w, "format must be json or yaml", http.StatusBadRequest)
	}
}
