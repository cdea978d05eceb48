package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "peoplehub/pkg/domain-errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ModeHosted, cfg.Auth.Mode)
	assert.Equal(t, 5*time.Second, cfg.Session.SignOutTimeout)
	assert.Equal(t, 15*time.Second, cfg.Session.LoadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Keeper.Interval)
	assert.Equal(t, 60*time.Second, cfg.Keeper.ValidateCooldown)
	assert.Equal(t, AuditLog, cfg.Audit.Sink)
	assert.Equal(t, 5, cfg.Auth.LockoutAttempts)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("PEOPLEHUB_AUTH_MODE", "local")
	t.Setenv("PEOPLEHUB_AUTH_SIGNING_KEY", "secret")
	t.Setenv("PEOPLEHUB_KEEPER_INTERVAL", "90s")
	t.Setenv("PEOPLEHUB_KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ModeLocal, cfg.Auth.Mode)
	assert.Equal(t, "secret", cfg.Auth.SigningKey)
	assert.Equal(t, 90*time.Second, cfg.Keeper.Interval)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	body := "auth:\n  mode: demo\nlinks:\n  repair_interval: 10m\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ModeDemo, cfg.Auth.Mode)
	assert.Equal(t, 10*time.Minute, cfg.Links.RepairInterval)
	assert.False(t, cfg.UsesDatabase())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(t.TempDir())
		require.NoError(t, err)
		cfg.Backend.URL = "https://project.example.com"
		cfg.Backend.AnonKey = "anon"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "hosted with backend", mutate: func(*Config) {}, ok: true},
		{name: "hosted without anon key", mutate: func(c *Config) { c.Backend.AnonKey = "" }},
		{name: "local without signing key", mutate: func(c *Config) { c.Auth.Mode = ModeLocal }},
		{name: "demo needs nothing", mutate: func(c *Config) { c.Auth.Mode = ModeDemo; c.Backend = BackendConfig{} }, ok: true},
		{name: "unknown mode", mutate: func(c *Config) { c.Auth.Mode = "ldap" }},
		{name: "postgres audit without database", mutate: func(c *Config) { c.Audit.Sink = AuditPostgres }},
		{name: "kafka audit without brokers", mutate: func(c *Config) { c.Audit.Sink = AuditKafka }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration), "got %v", err)
		})
	}
}
