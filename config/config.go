package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. DATAQUERY_SANDBOX_TIMEOUT_SEC
const EnvPrefix = "DATAQUERY"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Generator GeneratorConfig `mapstructure:"generator"`
	History   HistoryConfig   `mapstructure:"history"`
}

// ServerConfig holds MCP server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// SandboxConfig holds script execution limits
type SandboxConfig struct {
	Backend          string `mapstructure:"backend"`
	TimeoutSec       int    `mapstructure:"timeout_sec"`
	GraceMs          int    `mapstructure:"grace_ms"`
	MaxOutputKB      int    `mapstructure:"max_output_kb"`
	MaxCallStackSize int    `mapstructure:"max_call_stack"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode    string   `mapstructure:"mode"`
	Level   string   `mapstructure:"level"`
	Outputs []string `mapstructure:"outputs"`
}

// GeneratorConfig holds the OpenAI-compatible endpoint used to produce scripts.
// The API key is passed explicitly to the generator and never read by the sandbox.
type GeneratorConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	TimeoutSec  int     `mapstructure:"timeout_sec"`
}

// HistoryConfig holds run history storage configuration
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// New loads configuration from config.yaml in the working directory or ./config
func New() (*Config, error) {
	return Load("")
}

// Load loads configuration from the given file, or searches the default
// locations when path is empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("generator.api_key", EnvPrefix+"_GENERATOR_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("error binding environment: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.http_port", 8080)

	v.SetDefault("sandbox.backend", "goja")
	v.SetDefault("sandbox.timeout_sec", 10)
	v.SetDefault("sandbox.grace_ms", 500)
	v.SetDefault("sandbox.max_output_kb", 1024)
	v.SetDefault("sandbox.max_call_stack", 1024)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.outputs", []string{"stderr"})

	v.SetDefault("generator.base_url", "https://api.openai.com/v1/")
	v.SetDefault("generator.model", "gpt-4o-mini")
	v.SetDefault("generator.temperature", 0.0)
	v.SetDefault("generator.timeout_sec", 60)

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.path", "dataquery.db")
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Sandbox.Backend != "goja" {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.GraceMs < 0 {
		return fmt.Errorf("sandbox.grace_ms must not be negative, got: %d", c.Sandbox.GraceMs)
	}

	if c.Sandbox.MaxOutputKB <= 0 {
		return fmt.Errorf("sandbox.max_output_kb must be positive, got: %d", c.Sandbox.MaxOutputKB)
	}

	if c.Sandbox.MaxCallStackSize <= 0 {
		return fmt.Errorf("sandbox.max_call_stack must be positive, got: %d", c.Sandbox.MaxCallStackSize)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	if c.Generator.TimeoutSec < 0 {
		return fmt.Errorf("generator.timeout_sec must not be negative, got: %d", c.Generator.TimeoutSec)
	}

	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}

	return nil
}

// GetTimeout returns the execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// GetGrace returns how long the engine waits for an interrupted script to stop
func (c *Config) GetGrace() time.Duration {
	return time.Duration(c.Sandbox.GraceMs) * time.Millisecond
}

// GetGeneratorTimeout returns the per-request generator timeout, zero meaning none
func (c *Config) GetGeneratorTimeout() time.Duration {
	return time.Duration(c.Generator.TimeoutSec) * time.Second
}
