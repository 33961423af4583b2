package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: "http",
			HTTPPort:  8080,
		},
		Sandbox: SandboxConfig{
			Backend:          "goja",
			TimeoutSec:       10,
			GraceMs:          500,
			MaxOutputKB:      1024,
			MaxCallStackSize: 1024,
		},
		Logging: LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
		Generator: GeneratorConfig{
			Model:      "gpt-4o-mini",
			TimeoutSec: 60,
		},
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		err := validConfig().validate()
		require.NoError(t, err)
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"InvalidServerTransport", func(c *Config) { c.Server.Transport = "invalid" }, "invalid server.transport"},
		{"InvalidSandboxBackend", func(c *Config) { c.Sandbox.Backend = "docker" }, "unsupported sandbox.backend"},
		{"InvalidSandboxTimeout", func(c *Config) { c.Sandbox.TimeoutSec = 0 }, "sandbox.timeout_sec must be positive"},
		{"NegativeGrace", func(c *Config) { c.Sandbox.GraceMs = -1 }, "sandbox.grace_ms must not be negative"},
		{"InvalidOutputLimit", func(c *Config) { c.Sandbox.MaxOutputKB = 0 }, "sandbox.max_output_kb must be positive"},
		{"InvalidCallStack", func(c *Config) { c.Sandbox.MaxCallStackSize = -5 }, "sandbox.max_call_stack must be positive"},
		{"InvalidLoggingMode", func(c *Config) { c.Logging.Mode = "verbose" }, "invalid logging.mode"},
		{"InvalidLoggingLevel", func(c *Config) { c.Logging.Level = "invalid_level" }, "invalid logging.level"},
		{"NegativeGeneratorTimeout", func(c *Config) { c.Generator.TimeoutSec = -1 }, "generator.timeout_sec must not be negative"},
		{"HistoryWithoutPath", func(c *Config) { c.History = HistoryConfig{Enabled: true} }, "history.path is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, "goja", cfg.Sandbox.Backend)
	assert.Equal(t, 10*time.Second, cfg.GetTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.GetGrace())
	assert.Equal(t, 60*time.Second, cfg.GetGeneratorTimeout())
	assert.Equal(t, "sk-test", cfg.Generator.APIKey)
	assert.False(t, cfg.History.Enabled)
}

func TestLoadFile(t *testing.T) {
	t.Run("OverridesDefaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
sandbox:
  timeout_sec: 3
  max_output_kb: 16
logging:
  mode: development
  level: debug
history:
  enabled: true
  path: /tmp/dataquery-test.db
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 3*time.Second, cfg.GetTimeout())
		assert.Equal(t, 16, cfg.Sandbox.MaxOutputKB)
		assert.Equal(t, 1024, cfg.Sandbox.MaxCallStackSize)
		assert.Equal(t, "development", cfg.Logging.Mode)
		assert.True(t, cfg.History.Enabled)
	})

	t.Run("EnvironmentOverride", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sandbox:\n  timeout_sec: 3\n"), 0o600))
		t.Setenv("DATAQUERY_SANDBOX_TIMEOUT_SEC", "7")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Sandbox.TimeoutSec)
	})

	t.Run("MissingExplicitFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})

	t.Run("InvalidValues", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("sandbox:\n  timeout_sec: 0\n"), 0o600))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config validation error")
	})
}
