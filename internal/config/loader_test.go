package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RBAC_AUTH_JWT_SECRET", "test-secret")
	cwd, _ := os.Getwd()
	defer os.Chdir(cwd)
	os.Chdir(t.TempDir()) // make sure no stray config.yaml is picked up

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, DefaultBypassPrefixes, cfg.Authz.BypassPrefixes)
	assert.Equal(t, 60, cfg.Authz.DecisionCacheTTL)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("RBAC_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("RBAC_PORT", "9999")
	t.Setenv("RBAC_LOG_LEVEL", "debug")
	cwd, _ := os.Getwd()
	defer os.Chdir(cwd)
	os.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidateConfig(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:     8080,
			LogLevel: "info",
			Auth:     AuthConfig{Enabled: true, JWTSecret: "s"},
			Authz:    AuthzConfig{BypassPrefixes: DefaultBypassPrefixes, DecisionCacheTTL: 60},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validateConfig(base()))
	})

	t.Run("bad port", func(t *testing.T) {
		c := base()
		c.Port = -1
		assert.Error(t, validateConfig(c))
	})

	t.Run("bad log level", func(t *testing.T) {
		c := base()
		c.LogLevel = "verbose"
		assert.Error(t, validateConfig(c))
	})

	t.Run("auth enabled without secret", func(t *testing.T) {
		c := base()
		c.Auth.JWTSecret = ""
		assert.Error(t, validateConfig(c))
	})

	t.Run("relative bypass prefix", func(t *testing.T) {
		c := base()
		c.Authz.BypassPrefixes = []string{"admin/"}
		assert.Error(t, validateConfig(c))
	})
}
