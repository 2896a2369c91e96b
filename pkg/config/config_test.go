package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfig tests configuration loading
func TestLoadConfig(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PORT", "9090")
	t.Setenv("SEARCH_WORKERS", "2")
	t.Setenv("SEARCH_TRAINERS", "SdcaMulti, LightGbmMulti,")
	t.Setenv("TRAIN_RATIO", "0.7")
	t.Setenv("WEIGHT_COLUMN", "Weight")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Environment != "test" {
		t.Errorf("Expected environment 'test', got '%s'", cfg.Environment)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", cfg.LogLevel)
	}

	if cfg.Port != "9090" {
		t.Errorf("Expected port '9090', got '%s'", cfg.Port)
	}

	if cfg.SearchWorkers != 2 {
		t.Errorf("Expected SearchWorkers 2, got %d", cfg.SearchWorkers)
	}

	if len(cfg.Trainers) != 2 || cfg.Trainers[0] != "SdcaMulti" || cfg.Trainers[1] != "LightGbmMulti" {
		t.Errorf("Expected trainers [SdcaMulti LightGbmMulti], got %v", cfg.Trainers)
	}

	if cfg.TrainRatio != 0.7 {
		t.Errorf("Expected TrainRatio 0.7, got %v", cfg.TrainRatio)
	}

	if cfg.WeightColumn != "Weight" {
		t.Errorf("Expected WeightColumn 'Weight', got '%s'", cfg.WeightColumn)
	}
}

// TestLoadConfigDefaults tests default values
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Expected default environment 'development', got '%s'", cfg.Environment)
	}

	if cfg.LogFormat != "text" {
		t.Errorf("Expected default log format 'text', got '%s'", cfg.LogFormat)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port '8080', got '%s'", cfg.Port)
	}

	if cfg.SearchTrials != 20 {
		t.Errorf("Expected default SearchTrials 20, got %d", cfg.SearchTrials)
	}

	if cfg.LabelColumn != "Label" {
		t.Errorf("Expected default LabelColumn 'Label', got '%s'", cfg.LabelColumn)
	}

	if cfg.DataDir != "data" {
		t.Errorf("Expected default DataDir 'data', got '%s'", cfg.DataDir)
	}

	if cfg.PythonPath != "python3" {
		t.Errorf("Expected default PythonPath 'python3', got '%s'", cfg.PythonPath)
	}

	if len(cfg.Trainers) != 0 {
		t.Errorf("Expected no trainers, got %v", cfg.Trainers)
	}
}

func TestLoadConfigFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "automl.yaml")
	content := `
log_format: json
search_trials: 50
trainers: [SgdOva, SdcaMulti]
sweep_schedule: "0 3 * * *"
sweep_data_path: /data/train.csv
data_dir: /data
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogFormat != "json" {
		t.Errorf("Expected log format 'json', got '%s'", cfg.LogFormat)
	}
	if cfg.SearchTrials != 50 {
		t.Errorf("Expected SearchTrials 50, got %d", cfg.SearchTrials)
	}
	if len(cfg.Trainers) != 2 {
		t.Errorf("Expected 2 trainers, got %v", cfg.Trainers)
	}
	if cfg.SweepSchedule != "0 3 * * *" {
		t.Errorf("Expected sweep schedule '0 3 * * *', got '%s'", cfg.SweepSchedule)
	}
	if cfg.DataDir != "/data" {
		t.Errorf("Expected DataDir '/data', got '%s'", cfg.DataDir)
	}
	// Values absent from the file keep their environment value
	if cfg.Port != "7070" {
		t.Errorf("Expected port '7070', got '%s'", cfg.Port)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero workers", "SEARCH_WORKERS", "0"},
		{"ratio of one", "TRAIN_RATIO", "1"},
		{"unknown log format", "LOG_FORMAT", "xml"},
		{"schedule without data", "SWEEP_SCHEDULE", "@hourly"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := LoadConfig(); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.val)
			}
		})
	}

	t.Run("missing config file", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
		if _, err := LoadConfig(); err == nil {
			t.Error("Expected error for missing config file")
		}
	})
}
