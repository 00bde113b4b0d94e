package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_YAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	yml := `
model:
  provider: gemini
  name: gemini-2.5-pro
research:
  allowClarification: false
  maxSupervisorRounds: 6
  subTaskTimeout: 90s
  researchers:
    - http://localhost:9100
checkpoint:
  backend: sqlite
  path: /tmp/sessions.db
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deepresearch.yml"), []byte(yml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Model.Provider)
	assert.Equal(t, "gemini-2.5-pro", cfg.Model.Name)
	assert.False(t, cfg.Research.AllowClarification)
	assert.Equal(t, 6, cfg.Research.MaxSupervisorRounds)
	assert.Equal(t, 90*time.Second, cfg.Research.SubTaskTimeout)
	assert.Equal(t, []string{"http://localhost:9100"}, cfg.Research.Researchers)
	assert.Equal(t, "sqlite", cfg.Checkpoint.Backend)

	// Untouched sections keep their defaults.
	assert.Equal(t, 5, cfg.Research.MaxTopicsPerRound)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
}

func TestLoad_YAMLExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deepresearch.yaml"), []byte("log:\n  level: debug\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deepresearch.yml"), []byte("model: [\n"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DEEPRESEARCH_MODEL_PROVIDER", "gemini")
	t.Setenv("DEEPRESEARCH_MAX_CONCURRENT_RESEARCH", "8")
	t.Setenv("DEEPRESEARCH_SUBTASK_TIMEOUT", "2m")
	t.Setenv("DEEPRESEARCH_RESEARCHERS", "http://a:9100, http://b:9100,")
	t.Setenv("DEEPRESEARCH_ALLOW_CLARIFICATION", "false")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Model.Provider)
	assert.Equal(t, 8, cfg.Research.MaxConcurrentResearch)
	assert.Equal(t, 2*time.Minute, cfg.Research.SubTaskTimeout)
	assert.Equal(t, []string{"http://a:9100", "http://b:9100"}, cfg.Research.Researchers)
	assert.False(t, cfg.Research.AllowClarification)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DEEPRESEARCH_CHECKPOINT_BACKEND=memory\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("DEEPRESEARCH_CHECKPOINT_BACKEND") })

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Checkpoint.Backend)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("DEEPRESEARCH_MAX_SUPERVISOR_ROUNDS", "many")
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}
