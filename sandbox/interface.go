package sandbox

import (
	"context"
	"time"

	"github.com/isdmx/dataquery/dataset"
)

// ExecuteRequest represents one script submission
type ExecuteRequest struct {
	Script  string
	Dataset *dataset.Frame
	// Timeout is the wall-clock budget; zero uses the executor default
	Timeout time.Duration
}

// SandboxExecutor runs a script against a dataset. Implementations never
// return Go errors: every failure is reported through the Outcome.
type SandboxExecutor interface {
	Execute(ctx context.Context, req ExecuteRequest) Outcome
}

// Config holds the execution limits shared by every run of an executor
type Config struct {
	Timeout          time.Duration
	Grace            time.Duration
	MaxOutputBytes   int
	MaxCallStackSize int
}

// Default limits
const (
	DefaultTimeout          = 10 * time.Second
	DefaultGrace            = 500 * time.Millisecond
	DefaultMaxOutputBytes   = 1024 * BytesPerKB
	DefaultMaxCallStackSize = 1024
	BytesPerKB              = 1024
)

// DefaultConfig returns the limits used when no configuration is supplied
func DefaultConfig() Config {
	return Config{
		Timeout:          DefaultTimeout,
		Grace:            DefaultGrace,
		MaxOutputBytes:   DefaultMaxOutputBytes,
		MaxCallStackSize: DefaultMaxCallStackSize,
	}
}

// withDefaults fills zero fields from DefaultConfig
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Grace < 0 {
		c.Grace = d.Grace
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = d.MaxOutputBytes
	}
	if c.MaxCallStackSize <= 0 {
		c.MaxCallStackSize = d.MaxCallStackSize
	}
	return c
}
