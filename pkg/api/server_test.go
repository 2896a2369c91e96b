package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/mimir-aip/mimir-automl/pkg/logging"
	"github.com/mimir-aip/mimir-automl/pkg/metadatastore"
	"github.com/mimir-aip/mimir-automl/pkg/models"
	"github.com/mimir-aip/mimir-automl/pkg/scheduler"
	"github.com/mimir-aip/mimir-automl/pkg/search"
	"github.com/mimir-aip/mimir-automl/pkg/trainer"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	store, err := metadatastore.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := logging.NewLogger()
	logger.SetOutput(&strings.Builder{})

	catalog := trainer.DefaultCatalog()
	runner := search.NewRunner(catalog, store, search.Options{Workers: 2, Logger: logger})
	sched := scheduler.NewService(store, runner, logger)

	dataDir := t.TempDir()
	writeBlobs(t, filepath.Join(dataDir, "train.csv"))
	return NewServer(context.Background(), catalog, runner, store, sched, dataDir, "0", logger)
}

func writeBlobs(t *testing.T, path string) {
	t.Helper()
	centers := [][2]float64{{0, 0}, {4, 0}, {0, 4}}
	rng := rand.New(rand.NewSource(4))

	var b strings.Builder
	b.WriteString("Label,x,y\n")
	for i := 0; i < 90; i++ {
		k := i % 3
		fmt.Fprintf(&b, "c%d,%f,%f\n", k, centers[k][0]+rng.NormFloat64()*0.4, centers[k][1]+rng.NormFloat64()*0.4)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("Failed to write data: %v", err)
	}
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	s := setupServer(t)

	if rec := do(t, s, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/ready", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}

func TestListTrainers(t *testing.T) {
	s := setupServer(t)

	rec := do(t, s, http.MethodGet, "/api/trainers", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var all []TrainerInfo
	if err := json.NewDecoder(rec.Body).Decode(&all); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(all) != 17 {
		t.Errorf("Expected 17 trainers, got %d", len(all))
	}

	rec = do(t, s, http.MethodGet, "/api/trainers?kind=multiclass", nil)
	var multi []TrainerInfo
	if err := json.NewDecoder(rec.Body).Decode(&multi); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(multi) != 3 {
		t.Errorf("Expected 3 multiclass trainers, got %d", len(multi))
	}

	if rec := do(t, s, http.MethodPost, "/api/trainers", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}

func TestTrainerRanges(t *testing.T) {
	s := setupServer(t)

	rec := do(t, s, http.MethodGet, "/api/trainers/SdcaMulti/ranges", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var ranges []models.SweepableParam
	if err := json.NewDecoder(rec.Body).Decode(&ranges); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(ranges) == 0 {
		t.Error("Expected SdcaMulti to declare sweep ranges")
	}

	if rec := do(t, s, http.MethodGet, "/api/trainers/Bogus/ranges", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/trainers/SdcaMulti/other", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestCreatePipelineNode(t *testing.T) {
	s := setupServer(t)

	body := map[string]any{
		"hyperparameters": map[string]any{"numLeaves": 20},
		"label_column":    "Label",
	}
	rec := do(t, s, http.MethodPost, "/api/trainers/LightGbmMulti/pipeline-node", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var node models.PipelineNode
	if err := json.NewDecoder(rec.Body).Decode(&node); err != nil {
		t.Fatalf("Failed to decode node: %v", err)
	}
	if node.TrainerName != models.TrainerLightGbmMulti {
		t.Errorf("Expected trainer LightGbmMulti, got %s", node.TrainerName)
	}
	if node.Hyperparameters["numLeaves"] != 20 {
		t.Errorf("Expected numLeaves 20, got %v", node.Hyperparameters["numLeaves"])
	}
	if node.LabelColumn != "Label" {
		t.Errorf("Expected label column 'Label', got '%s'", node.LabelColumn)
	}

	body["hyperparameters"] = map[string]any{"bogus": 1}
	if rec := do(t, s, http.MethodPost, "/api/trainers/LightGbmMulti/pipeline-node", body); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown hyperparameter, got %d", rec.Code)
	}

	body = map[string]any{"hyperparameters": map[string]any{}, "label_column": ""}
	if rec := do(t, s, http.MethodPost, "/api/trainers/SdcaMulti/pipeline-node", body); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for missing label column, got %d", rec.Code)
	}
}

func TestSweepLifecycle(t *testing.T) {
	s := setupServer(t)
	path := "train.csv"

	req := models.SweepRequest{
		Trainers:    []models.TrainerName{models.TrainerLogisticRegressionOva, models.TrainerSdcaMulti},
		Trials:      4,
		LabelColumn: "Label",
		Seed:        7,
		TrainRatio:  0.75,
		DataSource:  path,
	}
	rec := do(t, s, http.MethodPost, "/api/sweeps", req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted models.Sweep
	if err := json.NewDecoder(rec.Body).Decode(&accepted); err != nil {
		t.Fatalf("Failed to decode sweep: %v", err)
	}
	if accepted.Status != models.SweepStatusRunning {
		t.Errorf("Expected status running, got %s", accepted.Status)
	}

	s.Wait()

	rec = do(t, s, http.MethodGet, "/api/sweeps/"+accepted.ID, nil)
	var sweep models.Sweep
	if err := json.NewDecoder(rec.Body).Decode(&sweep); err != nil {
		t.Fatalf("Failed to decode sweep: %v", err)
	}
	if sweep.Status != models.SweepStatusCompleted {
		t.Fatalf("Expected status completed, got %s (%s)", sweep.Status, sweep.Error)
	}

	rec = do(t, s, http.MethodGet, "/api/sweeps/"+accepted.ID+"/trials", nil)
	var trials []models.Trial
	if err := json.NewDecoder(rec.Body).Decode(&trials); err != nil {
		t.Fatalf("Failed to decode trials: %v", err)
	}
	if len(trials) != 4 {
		t.Errorf("Expected 4 trials, got %d", len(trials))
	}

	rec = do(t, s, http.MethodGet, "/api/sweeps/"+accepted.ID+"/best", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var best models.PipelineNode
	if err := json.NewDecoder(rec.Body).Decode(&best); err != nil {
		t.Fatalf("Failed to decode node: %v", err)
	}

	rec = do(t, s, http.MethodGet, "/api/sweeps/"+accepted.ID+"/best?format=yaml", nil)
	if ct := rec.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Errorf("Expected YAML content type, got %s", ct)
	}
	var fromYAML models.PipelineNode
	if err := yaml.Unmarshal(rec.Body.Bytes(), &fromYAML); err != nil {
		t.Fatalf("Failed to decode YAML node: %v", err)
	}
	if !fromYAML.Equal(&best) {
		t.Error("Expected YAML and JSON exports to describe the same node")
	}

	rec = do(t, s, http.MethodGet, "/api/sweeps", nil)
	var sweeps []models.Sweep
	if err := json.NewDecoder(rec.Body).Decode(&sweeps); err != nil {
		t.Fatalf("Failed to decode sweeps: %v", err)
	}
	if len(sweeps) != 1 {
		t.Errorf("Expected 1 sweep, got %d", len(sweeps))
	}

	if rec := do(t, s, http.MethodDelete, "/api/sweeps/"+accepted.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/sweeps/"+accepted.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", rec.Code)
	}
}

func TestCreateSweepErrors(t *testing.T) {
	s := setupServer(t)
	path := "train.csv"

	tests := []struct {
		name string
		req  models.SweepRequest
	}{
		{"missing data source", models.SweepRequest{Trainers: []models.TrainerName{models.TrainerSdcaMulti}, Trials: 1, LabelColumn: "Label", TrainRatio: 0.5}},
		{"unknown trainer", models.SweepRequest{Trainers: []models.TrainerName{"Bogus"}, Trials: 1, LabelColumn: "Label", TrainRatio: 0.5, DataSource: path}},
		{"bad ratio", models.SweepRequest{Trainers: []models.TrainerName{models.TrainerSdcaMulti}, Trials: 1, LabelColumn: "Label", TrainRatio: 1, DataSource: path}},
		{"missing file", models.SweepRequest{Trainers: []models.TrainerName{models.TrainerSdcaMulti}, Trials: 1, LabelColumn: "Label", TrainRatio: 0.5, DataSource: path + ".gone"}},
		{"absolute path", models.SweepRequest{Trainers: []models.TrainerName{models.TrainerSdcaMulti}, Trials: 1, LabelColumn: "Label", TrainRatio: 0.5, DataSource: "/etc/passwd"}},
		{"outside data dir", models.SweepRequest{Trainers: []models.TrainerName{models.TrainerSdcaMulti}, Trials: 1, LabelColumn: "Label", TrainRatio: 0.5, DataSource: "../train.csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, s, http.MethodPost, "/api/sweeps", tt.req); rec.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}

	if rec := do(t, s, http.MethodGet, "/api/sweeps/missing/best", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestScheduleRoutes(t *testing.T) {
	s := setupServer(t)
	path := "train.csv"

	schedule := models.SweepSchedule{
		Name:         "nightly",
		CronSchedule: "0 3 * * *",
		DataPath:     path,
		Enabled:      true,
		Request: models.SweepRequest{
			Trainers:    []models.TrainerName{models.TrainerSdcaMulti},
			Trials:      2,
			LabelColumn: "Label",
			TrainRatio:  0.7,
		},
	}
	rec := do(t, s, http.MethodPost, "/api/schedules", schedule)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created models.SweepSchedule
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode schedule: %v", err)
	}

	rec = do(t, s, http.MethodPost, "/api/schedules/"+created.ID+"/run", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var ran models.SweepSchedule
	if err := json.NewDecoder(rec.Body).Decode(&ran); err != nil {
		t.Fatalf("Failed to decode schedule: %v", err)
	}
	if ran.LastSweepID == "" {
		t.Error("Expected the run to record its sweep")
	}
	if ran.LastError != "" {
		t.Errorf("Expected no error, got '%s'", ran.LastError)
	}

	if rec := do(t, s, http.MethodGet, "/api/sweeps/"+ran.LastSweepID, nil); rec.Code != http.StatusOK {
		t.Errorf("Expected scheduled sweep to be stored, got %d", rec.Code)
	}

	bad := schedule
	bad.CronSchedule = "every tuesday"
	if rec := do(t, s, http.MethodPost, "/api/schedules", bad); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}

	if rec := do(t, s, http.MethodGet, "/api/schedules/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodDelete, "/api/schedules/"+created.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rec.Code)
	}
}

func TestDataSourcesStayInsideDataDir(t *testing.T) {
	s := setupServer(t)

	req := models.SweepRequest{
		Trainers:    []models.TrainerName{models.TrainerSdcaMulti},
		Trials:      1,
		LabelColumn: "Label",
		TrainRatio:  0.5,
		DataSource:  "missing.csv",
	}
	rec := do(t, s, http.MethodPost, "/api/sweeps", req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
	if body := rec.Body.String(); strings.Contains(body, "no such file") || strings.Contains(body, string(filepath.Separator)+"missing.csv") {
		t.Errorf("Expected the loader error to stay server side, got %s", body)
	}

	schedule := models.SweepSchedule{
		Name:         "escape",
		CronSchedule: "0 3 * * *",
		DataPath:     "/etc/passwd",
		Enabled:      true,
		Request:      models.SweepRequest{Trainers: req.Trainers, Trials: 1, LabelColumn: "Label", TrainRatio: 0.5},
	}
	if rec := do(t, s, http.MethodPost, "/api/schedules", schedule); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for an absolute data path, got %d", rec.Code)
	}

	schedule.DataPath = "train.csv"
	rec = do(t, s, http.MethodPost, "/api/schedules", schedule)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created models.SweepSchedule
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode schedule: %v", err)
	}
	if filepath.Base(created.DataPath) != "train.csv" || !filepath.IsAbs(created.DataPath) {
		t.Errorf("Expected the data path to resolve inside the data directory, got '%s'", created.DataPath)
	}

	escape := "../../train.csv"
	update := models.SweepScheduleUpdateRequest{DataPath: &escape}
	if rec := do(t, s, http.MethodPut, "/api/schedules/"+created.ID, update); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a data path outside the data directory, got %d", rec.Code)
	}
}
