package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized by the recorder. Unset variables fall
// back to the fixed defaults below; TASK_ID has no default on purpose —
// entry points treat an empty task identity as "nothing to record".
const (
	EnvTaskID                = "TASK_ID"
	EnvURI                   = "MONGODB_URI"
	EnvDatabase              = "MONGODB_DB"
	EnvMetricsCollection     = "MONGODB_COLLECTION"
	EnvCheckpointsCollection = "MONGODB_CKPT_COLLECTION"
)

const (
	DefaultURI                   = "mongodb://localhost:27017"
	DefaultDatabase              = "training"
	DefaultMetricsCollection     = "metrics"
	DefaultCheckpointsCollection = "checkpoints"
)

// Config holds everything the Saver resolves at construction time.
type Config struct {
	// TaskID identifies the current training run. Empty means no run is
	// active and log/metric/checkpoint calls become no-ops.
	TaskID string `json:"task_id" yaml:"task_id"`

	URI                   string `json:"uri" yaml:"uri"`
	Database              string `json:"database" yaml:"database"`
	MetricsCollection     string `json:"metrics_collection" yaml:"metrics_collection"`
	CheckpointsCollection string `json:"checkpoints_collection" yaml:"checkpoints_collection"`
}

// Default returns the fixed fallback configuration.
func Default() Config {
	return Config{
		URI:                   DefaultURI,
		Database:              DefaultDatabase,
		MetricsCollection:     DefaultMetricsCollection,
		CheckpointsCollection: DefaultCheckpointsCollection,
	}
}

// FromEnv resolves the configuration from the environment, falling back to
// the defaults for anything unset.
func FromEnv() Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// LoadFile reads a configuration file (JSON or YAML) and overlays it on the
// defaults. Environment values still win: callers get file < env precedence.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg Config
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("failed to unmarshal JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("failed to unmarshal YAML config: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format: %s (use .json or .yaml)", ext)
	}

	cfg := Default()
	cfg.overlay(fileCfg)
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) overlay(other Config) {
	if other.TaskID != "" {
		c.TaskID = other.TaskID
	}
	if other.URI != "" {
		c.URI = other.URI
	}
	if other.Database != "" {
		c.Database = other.Database
	}
	if other.MetricsCollection != "" {
		c.MetricsCollection = other.MetricsCollection
	}
	if other.CheckpointsCollection != "" {
		c.CheckpointsCollection = other.CheckpointsCollection
	}
}

func (c *Config) applyEnv() {
	c.overlay(Config{
		TaskID:                os.Getenv(EnvTaskID),
		URI:                   os.Getenv(EnvURI),
		Database:              os.Getenv(EnvDatabase),
		MetricsCollection:     os.Getenv(EnvMetricsCollection),
		CheckpointsCollection: os.Getenv(EnvCheckpointsCollection),
	})
}
