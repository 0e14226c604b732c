package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadReadsFileAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
listen: "0.0.0.0:9000"
horizon_days: 0
store:
  backend: memory
metrics:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, 14, cfg.HorizonDays)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "./var/store", cfg.Store.Dir)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "*/15 * * * *", cfg.RefreshCron)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \"127.0.0.1:1\"\n"), 0o600))

	t.Setenv("DOCAPPT_LISTEN", "127.0.0.1:2")
	t.Setenv("DOCAPPT_STORE_BACKEND", "redis")
	t.Setenv("DOCAPPT_HORIZON_DAYS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:2", cfg.Listen)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, 7, cfg.HorizonDays)
}

func TestLoadRejectsEmptyPath(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestNormalizeUnknownValues(t *testing.T) {
	cfg := &Config{Env: "staging", Store: StoreConfig{Backend: "etcd"}, Metrics: MetricsConfig{Path: "metrics"}, FetchTimeoutSeconds: -3}
	cfg.Normalize()
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, 0, cfg.FetchTimeoutSeconds)
	assert.False(t, cfg.IsProduction())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.HorizonDays = 21
	cfg.Store.Backend = "memory"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 21, loaded.HorizonDays)
	assert.Equal(t, "memory", loaded.Store.Backend)

	require.Error(t, Save(path, nil))
	require.Error(t, Save("", cfg))
}
