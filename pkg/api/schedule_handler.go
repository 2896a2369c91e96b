package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mimir-aip/mimir-automl/pkg/models"
	"github.com/mimir-aip/mimir-automl/pkg/scheduler"
)

// ScheduleHandler handles sweep schedule HTTP requests
type ScheduleHandler struct {
	service *scheduler.Service
	dataDir string
}

// NewScheduleHandler creates a new schedule handler. Schedule data paths
// resolve inside dataDir.
func NewScheduleHandler(service *scheduler.Service, dataDir string) *ScheduleHandler {
	return &ScheduleHandler{
		service: service,
		dataDir: dataDir,
	}
}

// HandleSchedules handles schedule list and create operations
func (h *ScheduleHandler) HandleSchedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleList(w, r)
	case http.MethodPost:
		h.handleCreate(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSchedule handles individual schedule operations, and POST
// /api/schedules/{id}/run to trigger a sweep immediately
func (h *ScheduleHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID := strings.TrimPrefix(r.URL.Path, "/api/schedules/")
	action := ""
	if idx := strings.Index(scheduleID, "/"); idx != -1 {
		scheduleID, action = scheduleID[:idx], scheduleID[idx+1:]
	}

	if action == "run" {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handleRun(w, r, scheduleID)
		return
	}
	if action != "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r, scheduleID)
	case http.MethodPut:
		h.handleUpdate(w, r, scheduleID)
	case http.MethodDelete:
		h.handleDelete(w, r, scheduleID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleList lists all schedules
func (h *ScheduleHandler) handleList(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.service.List()
	if err != nil {
		writeError(w, "Failed to list schedules", err)
		return
	}
	if schedules == nil {
		schedules = []*models.SweepSchedule{}
	}
	writeJSON(w, http.StatusOK, schedules)
}

// handleCreate creates a new schedule
func (h *ScheduleHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.SweepSchedule
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	path, err := resolveDataPath(h.dataDir, req.DataPath)
	if err != nil {
		writeError(w, "Invalid data path", err)
		return
	}
	req.DataPath = path

	schedule, err := h.service.Create(&req)
	if err != nil {
		writeError(w, "Failed to create schedule", err)
		return
	}
	writeJSON(w, http.StatusCreated, schedule)
}

// handleGet retrieves a schedule
func (h *ScheduleHandler) handleGet(w http.ResponseWriter, r *http.Request, scheduleID string) {
	schedule, err := h.service.Get(scheduleID)
	if err != nil {
		writeError(w, "Schedule not found", err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// handleUpdate updates a schedule
func (h *ScheduleHandler) handleUpdate(w http.ResponseWriter, r *http.Request, scheduleID string) {
	var req models.SweepScheduleUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.DataPath != nil {
		path, err := resolveDataPath(h.dataDir, *req.DataPath)
		if err != nil {
			writeError(w, "Invalid data path", err)
			return
		}
		req.DataPath = &path
	}

	schedule, err := h.service.Update(scheduleID, &req)
	if err != nil {
		writeError(w, "Failed to update schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// handleDelete deletes a schedule
func (h *ScheduleHandler) handleDelete(w http.ResponseWriter, r *http.Request, scheduleID string) {
	if err := h.service.Delete(scheduleID); err != nil {
		writeError(w, "Failed to delete schedule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRun runs the schedule's sweep and waits for it
func (h *ScheduleHandler) handleRun(w http.ResponseWriter, r *http.Request, scheduleID string) {
	schedule, err := h.service.RunNow(r.Context(), scheduleID)
	if err != nil {
		writeError(w, "Failed to run schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}
