package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Less(t, cfg.Cache.ActiveTTL, cfg.Cache.StaleCeiling)
	assert.Less(t, cfg.Cache.BackgroundTTL, cfg.Cache.StaleCeiling)
	assert.Equal(t, 1, cfg.Validator.MaxRetries)
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// The file should now exist and be loadable again.
	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Cache.ActiveTTL, again.Cache.ActiveTTL)
}

func TestLoadReadsValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
cache:
  active_ttl: 45s
  background_ttl: 90s
  stale_ceiling: 10m
  max_windows: 4
gate:
  budget: 3s
validator:
  max_retries: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Cache.ActiveTTL)
	assert.Equal(t, 90*time.Second, cfg.Cache.BackgroundTTL)
	assert.Equal(t, 4, cfg.Cache.MaxWindows)
	assert.Equal(t, 3*time.Second, cfg.Gate.Budget)
	// Unset values fall back to defaults.
	assert.Equal(t, Default().Gate.PollInterval, cfg.Gate.PollInterval)
	assert.Equal(t, Default().Search.TopK, cfg.Search.TopK)
}

func TestValidateRejectsTTLAboveCeiling(t *testing.T) {
	cfg := Default()
	cfg.Cache.ActiveTTL = cfg.Cache.StaleCeiling + time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale_ceiling")
}

func TestValidateRejectsNegativeRetries(t *testing.T) {
	cfg := Default()
	cfg.Validator.MaxRetries = -1

	require.Error(t, cfg.Validate())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".glance", "x.db"), expandPath("~/.glance/x.db"))
	assert.Equal(t, "/tmp/x.db", expandPath("/tmp/x.db"))
	assert.Equal(t, "", expandPath(""))
}
