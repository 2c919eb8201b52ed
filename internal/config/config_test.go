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

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  api_key: secret
database:
  host: localhost
  name: presensense
  user: ps
  password: ps
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 128, cfg.Vision.EmbeddingDim)
	assert.Equal(t, 0.6, cfg.Recognition.MatchThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Recognition.DedupWindow())
	assert.Equal(t, 5*time.Second, cfg.Emotion.AttentionSlice())
	assert.Equal(t, 50, cfg.Emotion.SessionListLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
recognition:
  match_threshold: 0.75
  dedup_window_seconds: 120
emotion:
  attention_slice_seconds: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 0.75, cfg.Recognition.MatchThreshold)
	assert.Equal(t, 2*time.Minute, cfg.Recognition.DedupWindow())
	assert.Equal(t, 2*time.Second, cfg.Emotion.AttentionSlice())
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
`)

	t.Setenv("PS_SERVER_PORT", "7070")
	t.Setenv("PS_MATCH_THRESHOLD", "0.8")
	t.Setenv("PS_DEDUP_WINDOW_SECONDS", "600")
	t.Setenv("PS_DB_HOST", "db.internal")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 0.8, cfg.Recognition.MatchThreshold)
	assert.Equal(t, 10*time.Minute, cfg.Recognition.DedupWindow())
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "localhost", Port: 5432, Name: "ps", User: "u", Password: "p"}
	assert.Equal(t, "postgres://u:p@localhost:5432/ps?sslmode=disable", d.DSN())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
