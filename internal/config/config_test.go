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

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: ./data/queue.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "smartq", cfg.App.Name)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:5001", cfg.ML.BaseURL)
	assert.Equal(t, 5*time.Minute, cfg.ML.CacheTTL)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
app:
  name: smartq
  environment: production
server:
  port: 8080
database:
  path: /var/lib/smartq/queue.db
redis:
  address: localhost:6379
  db: 2
ml:
  base_url: http://ml:5001
  cache_ttl_seconds: 60
monitoring:
  prometheus_enabled: true
rate_limit:
  rps: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "http://ml:5001", cfg.ML.BaseURL)
	assert.Equal(t, time.Minute, cfg.ML.CacheTTL)
	assert.Equal(t, 9090, cfg.Monitoring.PrometheusPort, "default port when enabled")
	assert.Equal(t, float64(10), cfg.RateLimit.RPS)
	assert.Equal(t, 5, cfg.RateLimit.Burst, "default burst when limiting is on")
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis.internal:6379")
	path := writeConfig(t, `
database:
  path: ./data/queue.db
redis:
  address: ${TEST_REDIS_ADDR}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Address)
}

func TestLoadMissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database path is required")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Path = "queue.db"
	require.Error(t, cfg.Validate(), "ml base_url is required")

	cfg.ML.BaseURL = "http://localhost:5001"
	assert.NoError(t, cfg.Validate())
}
