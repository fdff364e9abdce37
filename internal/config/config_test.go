package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, ".bpmnchat/sessions", cfg.SessionDir)
	assert.Equal(t, InventoryMemory, cfg.Inventory)
	assert.Equal(t, "bpmnchat:", cfg.RedisPrefix)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Zero(t, cfg.Pacing)
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.UsesRedis())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("BPMNCHAT_PROCESS", "hotel.bpmn")
	t.Setenv("BPMNCHAT_PACING", "250ms")
	t.Setenv("BPMNCHAT_STRICT_FLOWS", "true")
	t.Setenv("BPMNCHAT_STORE", "redis")
	t.Setenv("BPMNCHAT_REDIS_DB", "3")
	t.Setenv("BPMNCHAT_PII_KEYS", "^identity$,password")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "hotel.bpmn", cfg.Process)
	assert.Equal(t, 250*time.Millisecond, cfg.Pacing)
	assert.True(t, cfg.StrictFlows)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, []string{"^identity$", "password"}, cfg.PIIKeys)
}

func TestLoad_DotEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(file, []byte("BPMNCHAT_PORT=9090\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("BPMNCHAT_PORT") })

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
}

func TestLoad_EnvironmentWinsOverDotEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(file, []byte("BPMNCHAT_LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("BPMNCHAT_LOG_LEVEL", "warn")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("BPMNCHAT_PORT", "not-a-number")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{Store: StoreMemory, Inventory: InventoryMemory, Port: 8080}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Valid", func(*Config) {}, ""},
		{"Unknown Store", func(c *Config) { c.Store = "etcd" }, `unknown store "etcd"`},
		{"Unknown Inventory", func(c *Config) { c.Inventory = "csv" }, `unknown inventory "csv"`},
		{"Postgres Without DSN", func(c *Config) { c.Inventory = InventoryPostgres }, "BPMNCHAT_POSTGRES_DSN"},
		{"HTTP Without URL", func(c *Config) { c.Inventory = InventoryHTTP }, "BPMNCHAT_INVENTORY_URL"},
		{"Bad Port", func(c *Config) { c.Port = 0 }, "invalid port"},
		{"Negative Pacing", func(c *Config) { c.Pacing = -time.Second }, "pacing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
