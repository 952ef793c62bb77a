package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/siherrmann/kgraph/helper"
	"github.com/siherrmann/kgraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	// No kgraph.yaml in an empty directory
	t.Chdir(t.TempDir())

	v, err := newViper("")
	require.NoError(t, err)
	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, model.DefaultConfig(), cfg.Graph, "Expected graph defaults")
	assert.Equal(t, "public", cfg.DB.Schema)
	assert.Equal(t, "disable", cfg.DB.SSLMode)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := `db:
  host: localhost
  port: "5433"
  database: graph
  username: kgraph
graph:
  query:
    default_max_hops: 3
  edge:
    allow_proximity_edges: false
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kgraph.yaml"), []byte(yaml), 0o600))

	v, err := newViper("")
	require.NoError(t, err)
	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, "5433", cfg.DB.Port)
	assert.Equal(t, 3, cfg.Graph.Query.DefaultMaxHops)
	assert.Equal(t, 5, cfg.Graph.Query.MaxHopsLimit, "Expected unset keys to keep their defaults")
	assert.False(t, cfg.Graph.Edge.AllowProximityEdges)

	level, err := cfg.logLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("KGRAPH_DB_HOST", "db.internal")
	t.Setenv("KGRAPH_GRAPH_RANK_DAMPING", "0.9")
	t.Setenv("KGRAPH_GRAPH_QUERY_MAX_HOPS_LIMIT", "4")

	v, err := newViper("")
	require.NoError(t, err)
	cfg, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.InDelta(t, 0.9, cfg.Graph.Rank.Damping, 1e-9)
	assert.Equal(t, 4, cfg.Graph.Query.MaxHopsLimit)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("Explicit config file must exist", func(t *testing.T) {
		v, err := newViper(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		_, err = loadConfig(v)
		assert.Error(t, err)
	})

	t.Run("Out of range value is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("graph:\n  rank:\n    damping: 2\n"), 0o600))

		v, err := newViper(path)
		require.NoError(t, err)
		_, err = loadConfig(v)
		assert.ErrorIs(t, err, helper.ErrInvalidInput)
	})

	t.Run("Unknown log level", func(t *testing.T) {
		cfg := &Config{Log: LogConfig{Level: "loud"}}
		_, err := cfg.logLevel()
		assert.ErrorIs(t, err, helper.ErrInvalidInput)
	})
}
