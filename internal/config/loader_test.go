package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8750, cfg.Server.Port)
	assert.Equal(t, "eager", cfg.Store.IndexConsistency)
	assert.Equal(t, 30*time.Second, cfg.Store.RebuildInterval)
	assert.Equal(t, 0.3, cfg.Engine.FeedbackWeight)
	assert.Equal(t, 0.3, cfg.Engine.MinSimilarity)
	assert.Equal(t, 1000, cfg.Engine.MaxPatterns)
	assert.False(t, cfg.Loop.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9100
store:
  snapshot_path: /var/lib/patternbank/patterns.json
  index_consistency: lazy
  rebuild_interval: 10s
engine:
  min_similarity: 0.5
  max_results: 25
logging:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "/var/lib/patternbank/patterns.json", cfg.Store.SnapshotPath)
	assert.Equal(t, "lazy", cfg.Store.IndexConsistency)
	assert.Equal(t, 10*time.Second, cfg.Store.RebuildInterval)
	assert.Equal(t, 0.5, cfg.Engine.MinSimilarity)
	assert.Equal(t, 25, cfg.Engine.MaxResults)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 0.3, cfg.Engine.FeedbackWeight)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9100\n")

	t.Setenv("PATTERNBANK_SERVER_PORT", "9200")
	t.Setenv("PATTERNBANK_STORE_SNAPSHOT_PATH", "/tmp/patterns.json")
	t.Setenv("PATTERNBANK_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "/tmp/patterns.json", cfg.Store.SnapshotPath)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"bad index consistency", "store:\n  index_consistency: eventual\n"},
		{"feedback weight too large", "engine:\n  feedback_weight: 1.5\n"},
		{"min similarity negative", "engine:\n  min_similarity: -0.1\n"},
		{"keep minimum exceeds max", "engine:\n  keep_minimum: 5000\n"},
		{"loop without watch dir", "loop:\n  enabled: true\n"},
		{"bad log level", "logging:\n  level: verbose\n"},
		{"bad log format", "logging:\n  format: pretty\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "server.port", envTransform("PATTERNBANK_SERVER_PORT"))
	assert.Equal(t, "store.snapshot_path", envTransform("PATTERNBANK_STORE_SNAPSHOT_PATH"))
	assert.Equal(t, "engine.feedback_weight", envTransform("PATTERNBANK_ENGINE_FEEDBACK_WEIGHT"))
}

func TestValidate_DefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
