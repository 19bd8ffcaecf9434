package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("REALTIME_SOURCE", "")
	t.Setenv("DB_QUERY_TIMEOUT", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendRemote, cfg.Storage.Backend)
	assert.Equal(t, SourcePostgres, cfg.Realtime.Source)
	assert.Equal(t, 3*time.Second, cfg.Realtime.ReconnectDelay)
	assert.Equal(t, time.Second, cfg.Realtime.ResubscribeDelay)
	assert.Equal(t, 10*time.Second, cfg.Database.QueryTimeout)
}

func TestLoadLocalBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("REALTIME_SOURCE", "postgres")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REALTIME_TABLES", "events, sermons ,")
	t.Setenv("REALTIME_RECONNECT_DELAY", "500ms")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, cfg.Realtime.Source)
	assert.Equal(t, []string{"events", "sermons"}, cfg.Realtime.Tables)
	assert.Equal(t, 500*time.Millisecond, cfg.Realtime.ReconnectDelay)
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "s3")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORAGE_BACKEND", "remote")
	t.Setenv("REALTIME_SOURCE", "redis")
	t.Setenv("REDIS_ADDR", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: "5432", DBName: "church", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/church?sslmode=disable", c.DSN())
	c.URL = "postgres://x"
	assert.Equal(t, "postgres://x", c.DSN())
}
