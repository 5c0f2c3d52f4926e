package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "sales_ledger", cfg.Storage.BigQuery.Dataset)
	assert.Equal(t, "transactions", cfg.Storage.BigQuery.Table)
	assert.Equal(t, 500, cfg.Pipeline.FlushSize)
	assert.Equal(t, 100, cfg.Jobs.QueueSize)
	assert.Equal(t, 5, cfg.Jobs.Workers)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
storage:
  backend: bigquery
  bigquery:
    project: acme-dev
    dataset: ledger_dev
pipeline:
  flush_size: 50
jobs:
  workers: 2
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "bigquery", cfg.Storage.Backend)
	assert.Equal(t, "acme-dev", cfg.Storage.BigQuery.Project)
	assert.Equal(t, "ledger_dev", cfg.Storage.BigQuery.Dataset)
	// Unset fields still fall back to defaults.
	assert.Equal(t, "transactions", cfg.Storage.BigQuery.Table)
	assert.Equal(t, 50, cfg.Pipeline.FlushSize)
	assert.Equal(t, 2, cfg.Jobs.Workers)
	assert.Equal(t, 100, cfg.Jobs.QueueSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o644))

	t.Setenv("PORT", "7070")
	t.Setenv("PIPELINE_FLUSH_SIZE", "25")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, 25, cfg.Pipeline.FlushSize)
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "bigquery")

	_, err := Load("")
	assert.Error(t, err, "bigquery backend without a project must be rejected")

	t.Setenv("BIGQUERY_PROJECT", "acme-dev")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "acme-dev", cfg.Storage.BigQuery.Project)
}

func TestLoadUnknownBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "redis")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
