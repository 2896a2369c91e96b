package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Environment   string   `yaml:"environment"`
	LogLevel      string   `yaml:"log_level"`
	LogFormat     string   `yaml:"log_format"`
	Port          string   `yaml:"port"`
	DatabasePath  string   `yaml:"database_path"`
	SearchWorkers int      `yaml:"search_workers"`
	SearchTrials  int      `yaml:"search_trials"`
	Trainers      []string `yaml:"trainers"` // Empty means every multiclass trainer
	TrainRatio    float64  `yaml:"train_ratio"`
	RandomSeed    int64    `yaml:"random_seed"`
	SweepSchedule string   `yaml:"sweep_schedule"` // Cron expression, empty disables re-sweeps
	SweepDataPath string   `yaml:"sweep_data_path"`
	DataDir       string   `yaml:"data_dir"` // API data sources resolve inside it
	LabelColumn   string   `yaml:"label_column"`
	WeightColumn  string   `yaml:"weight_column"`
	PythonPath    string   `yaml:"python_path"`
}

// LoadConfig loads configuration from environment variables, then overlays
// the YAML file named by CONFIG_FILE when set
func LoadConfig() (*Config, error) {
	config := &Config{
		Environment:   getEnv("ENVIRONMENT", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		Port:          getEnv("PORT", "8080"),
		DatabasePath:  getEnv("DATABASE_PATH", "automl.db"),
		SearchWorkers: getEnvAsInt("SEARCH_WORKERS", 4),
		SearchTrials:  getEnvAsInt("SEARCH_TRIALS", 20),
		Trainers:      getEnvAsList("SEARCH_TRAINERS"),
		TrainRatio:    getEnvAsFloat("TRAIN_RATIO", 0.8),
		RandomSeed:    int64(getEnvAsInt("RANDOM_SEED", 1)),
		SweepSchedule: getEnv("SWEEP_SCHEDULE", ""),
		SweepDataPath: getEnv("SWEEP_DATA_PATH", ""),
		DataDir:       getEnv("DATA_DIR", "data"),
		LabelColumn:   getEnv("LABEL_COLUMN", "Label"),
		WeightColumn:  getEnv("WEIGHT_COLUMN", ""),
		PythonPath:    getEnv("PYTHON_PATH", "python3"),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks if the Config is valid
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.SearchWorkers < 1 {
		return fmt.Errorf("SEARCH_WORKERS must be at least 1, got %d", c.SearchWorkers)
	}
	if c.SearchTrials < 1 {
		return fmt.Errorf("SEARCH_TRIALS must be at least 1, got %d", c.SearchTrials)
	}
	if c.TrainRatio <= 0 || c.TrainRatio >= 1 {
		return fmt.Errorf("TRAIN_RATIO must be between 0 and 1, got %v", c.TrainRatio)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.SweepSchedule != "" && c.SweepDataPath == "" {
		return fmt.Errorf("SWEEP_DATA_PATH is required when SWEEP_SCHEDULE is set")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.LabelColumn == "" {
		return fmt.Errorf("LABEL_COLUMN is required")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping empty items
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
