package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/behaviour/internal/core/observability/log"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, log.LevelInfo, cfg.LogLevel())
	assert.Equal(t, 10, cfg.Sim.NPCs)
	assert.Equal(t, 200*time.Millisecond, cfg.Sim.TickInterval)
	assert.Equal(t, "memory", cfg.Storage.Mode)
	assert.False(t, cfg.Server.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "npcsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
sim:
  assets: ./guards.yaml
  npcs: 3
  tick_interval: 50ms
  initial_state:
    health: 100
server:
  enabled: true
  addr: ":9000"
storage:
  mode: redis
  redis_url: redis://cache:6379/1
`), 0o600))

	t.Setenv("NPCSIM_SIM_NPCS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, log.LevelDebug, cfg.LogLevel())
	assert.Equal(t, "./guards.yaml", cfg.Sim.Assets)
	assert.Equal(t, 7, cfg.Sim.NPCs)
	assert.Equal(t, 50*time.Millisecond, cfg.Sim.TickInterval)
	assert.EqualValues(t, 100, cfg.Sim.InitialState["health"])
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "redis", cfg.Storage.Mode)
	assert.Equal(t, "redis://cache:6379/1", cfg.Storage.RedisURL)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := *cfg
	bad.Log.Level = "chatty"
	bad.Sim.TickInterval = 0
	bad.Storage.Mode = "disk"
	err = bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chatty")
	assert.Contains(t, err.Error(), "tick_interval")
	assert.Contains(t, err.Error(), "disk")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
