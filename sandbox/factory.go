package sandbox

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/dataquery/config"
)

// BackendGoja selects the in-process goja executor
const BackendGoja = "goja"

// NewExecutor creates the sandbox executor selected by the configuration
func NewExecutor(logger *zap.Logger, cfg *config.Config) (SandboxExecutor, error) {
	executorConfig := Config{
		Timeout:          cfg.GetTimeout(),
		Grace:            cfg.GetGrace(),
		MaxOutputBytes:   cfg.Sandbox.MaxOutputKB * BytesPerKB,
		MaxCallStackSize: cfg.Sandbox.MaxCallStackSize,
	}

	switch cfg.Sandbox.Backend {
	case BackendGoja, "":
		return NewGojaExecutor(logger, executorConfig), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Sandbox.Backend)
	}
}
