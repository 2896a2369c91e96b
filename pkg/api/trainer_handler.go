package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mimir-aip/mimir-automl/pkg/hyperparam"
	"github.com/mimir-aip/mimir-automl/pkg/models"
	"github.com/mimir-aip/mimir-automl/pkg/trainer"
)

// TrainerHandler handles trainer catalog HTTP requests
type TrainerHandler struct {
	catalog *trainer.Catalog
}

// NewTrainerHandler creates a new trainer handler
func NewTrainerHandler(catalog *trainer.Catalog) *TrainerHandler {
	return &TrainerHandler{
		catalog: catalog,
	}
}

// TrainerInfo describes one registered trainer
type TrainerInfo struct {
	Name models.TrainerName `json:"name"`
	Kind models.TrainerKind `json:"kind"`
}

// PipelineNodeRequest is the body of a pipeline node request
type PipelineNodeRequest struct {
	Hyperparameters map[string]any `json:"hyperparameters"`
	LabelColumn     string         `json:"label_column"`
	WeightColumn    *string        `json:"weight_column,omitempty"`
}

// HandleTrainers handles requests for /api/trainers
// GET: List registered trainers, ?kind=binary|ova|multiclass filters
func (h *TrainerHandler) HandleTrainers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	kind := models.TrainerKind(r.URL.Query().Get("kind"))
	trainers := make([]TrainerInfo, 0)
	for _, e := range h.catalog.Entries() {
		if kind == "" || e.Kind == kind {
			trainers = append(trainers, TrainerInfo{Name: e.Name, Kind: e.Kind})
		}
	}
	writeJSON(w, http.StatusOK, trainers)
}

// HandleTrainer handles requests for /api/trainers/{name}/...
// GET ranges: The trainer's sweep ranges
// POST pipeline-node: Record an assignment as a pipeline node
func (h *TrainerHandler) HandleTrainer(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/trainers/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	name := models.TrainerName(parts[0])

	switch {
	case parts[1] == "ranges" && r.Method == http.MethodGet:
		h.handleRanges(w, r, name)
	case parts[1] == "pipeline-node" && r.Method == http.MethodPost:
		h.handlePipelineNode(w, r, name)
	case parts[1] == "ranges" || parts[1] == "pipeline-node":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *TrainerHandler) handleRanges(w http.ResponseWriter, r *http.Request, name models.TrainerName) {
	ext, err := h.catalog.Lookup(name)
	if err != nil {
		http.Error(w, fmt.Sprintf("Trainer not found: %v", err), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ext.HyperparamSweepRanges())
}

func (h *TrainerHandler) handlePipelineNode(w http.ResponseWriter, r *http.Request, name models.TrainerName) {
	ext, err := h.catalog.Lookup(name)
	if err != nil {
		http.Error(w, fmt.Sprintf("Trainer not found: %v", err), http.StatusNotFound)
		return
	}

	var req PipelineNodeRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	params, err := hyperparam.Coerce(ext.HyperparamSweepRanges(), req.Hyperparameters)
	if err != nil {
		writeError(w, "Invalid hyperparameters", err)
		return
	}

	cols := models.NewColumnInformation(req.LabelColumn)
	if req.WeightColumn != nil && *req.WeightColumn != "" {
		cols = cols.WithWeight(*req.WeightColumn)
	}

	node, err := ext.CreatePipelineNode(params, cols)
	if err != nil {
		writeError(w, "Failed to create pipeline node", err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}
