// Package config loads service configuration from an optional YAML file with
// environment variable overrides. A .env file is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Jobs     JobsConfig     `yaml:"jobs"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// StorageConfig selects and parameterizes the transaction store backend.
type StorageConfig struct {
	// Backend is "memory" or "bigquery".
	Backend string `yaml:"backend"`

	BigQuery BigQueryConfig `yaml:"bigquery"`

	// UploadBucket, when set, is where async uploads are staged before the
	// worker ingests them. Empty means stage to a local temp file.
	UploadBucket string `yaml:"upload_bucket"`
}

// BigQueryConfig identifies the durable transactions table.
type BigQueryConfig struct {
	Project string `yaml:"project"`
	Dataset string `yaml:"dataset"`
	Table   string `yaml:"table"`
}

// PipelineConfig tunes batch ingestion.
type PipelineConfig struct {
	// FlushSize is how many accepted rows are buffered before a flush.
	FlushSize int `yaml:"flush_size"`
}

// JobsConfig tunes the background ingest queue.
type JobsConfig struct {
	QueueSize int `yaml:"queue_size"`
	Workers   int `yaml:"workers"`
}

// Load reads configuration from path (optional, "" skips the file), applies
// environment overrides and fills defaults.
func Load(path string) (*Config, error) {
	// A missing .env file is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("BIGQUERY_PROJECT"); v != "" {
		c.Storage.BigQuery.Project = v
	}
	if v := os.Getenv("BIGQUERY_DATASET"); v != "" {
		c.Storage.BigQuery.Dataset = v
	}
	if v := os.Getenv("BIGQUERY_TABLE"); v != "" {
		c.Storage.BigQuery.Table = v
	}
	if v := os.Getenv("UPLOAD_BUCKET"); v != "" {
		c.Storage.UploadBucket = v
	}
	if v, err := strconv.Atoi(os.Getenv("PIPELINE_FLUSH_SIZE")); err == nil && v > 0 {
		c.Pipeline.FlushSize = v
	}
	if v, err := strconv.Atoi(os.Getenv("JOBS_QUEUE_SIZE")); err == nil && v > 0 {
		c.Jobs.QueueSize = v
	}
	if v, err := strconv.Atoi(os.Getenv("JOBS_WORKERS")); err == nil && v > 0 {
		c.Jobs.Workers = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Storage.BigQuery.Dataset == "" {
		c.Storage.BigQuery.Dataset = "sales_ledger"
	}
	if c.Storage.BigQuery.Table == "" {
		c.Storage.BigQuery.Table = "transactions"
	}
	if c.Pipeline.FlushSize <= 0 {
		c.Pipeline.FlushSize = 500
	}
	if c.Jobs.QueueSize <= 0 {
		c.Jobs.QueueSize = 100
	}
	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = 5
	}
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "memory":
	case "bigquery":
		if c.Storage.BigQuery.Project == "" {
			return fmt.Errorf("storage backend bigquery requires a project id")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}
