package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t77yq/nextrun/internal/model"
)

const sampleConfig = `
app:
  name: test-app
log:
  level: debug
nats:
  url: nats://example:4222
  reconnect_wait: 3s
storage:
  path: /tmp/test.db
schedules:
  - id: every-two
    name: every two hours
    type: hourly
    interval: 2
  - id: weekly
    name: weekly
    type: Weekly
    days: [1, 3]
    hours: [8, 20]
    payload: '{"x":1}'
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "test-app", cfg.App.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "nats://example:4222", cfg.NATS.URL)
	assert.Equal(t, 3*time.Second, cfg.NATS.ReconnectWait)
	assert.Equal(t, 5*time.Second, cfg.NATS.ConnectTimeout)
	assert.Equal(t, "/tmp/test.db", cfg.Storage.Path)
	assert.Equal(t, 30*24*time.Hour, cfg.History.Retention)

	require.Len(t, cfg.Schedules, 2)

	hourly := cfg.Schedules[0].Job()
	assert.Equal(t, "every-two", hourly.ID)
	assert.Equal(t, model.Hourly{Interval: 2}, hourly.Schedule())

	weekly := cfg.Schedules[1].Job()
	assert.Equal(t, model.Weekly{Days: []int{1, 3}, Hours: []int{8, 20}}, weekly.Schedule())
	assert.JSONEq(t, `{"x":1}`, string(weekly.Payload))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "nextrun", cfg.App.Name)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, 3, cfg.NATS.PublishRetries)
	assert.Equal(t, "nextrun.db", cfg.Storage.Path)
	assert.Empty(t, cfg.Schedules)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("NEXTRUN_NATS_URL", "nats://override:4222")
	t.Setenv("NEXTRUN_STORAGE_PATH", "/data/nextrun.db")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "nats://override:4222", cfg.NATS.URL)
	assert.Equal(t, "/data/nextrun.db", cfg.Storage.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
