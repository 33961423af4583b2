package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/dataquery/config"
)

func TestNewExecutor(t *testing.T) {
	cfg := &config.Config{
		Sandbox: config.SandboxConfig{
			Backend:          BackendGoja,
			TimeoutSec:       3,
			GraceMs:          100,
			MaxOutputKB:      1,
			MaxCallStackSize: 256,
		},
	}

	t.Run("Goja", func(t *testing.T) {
		executor, err := NewExecutor(zaptest.NewLogger(t), cfg)
		require.NoError(t, err)

		gojaExecutor, ok := executor.(*GojaExecutor)
		require.True(t, ok)
		assert.Equal(t, 3*time.Second, gojaExecutor.config.Timeout)
		assert.Equal(t, 100*time.Millisecond, gojaExecutor.config.Grace)
		assert.Equal(t, BytesPerKB, gojaExecutor.config.MaxOutputBytes)
		assert.Equal(t, 256, gojaExecutor.config.MaxCallStackSize)

		outcome := executor.Execute(context.Background(), ExecuteRequest{Script: "print(df.shape)", Dataset: sampleFrame(t)})
		assert.Equal(t, "(3, 2)\n", outcome.Output)
	})

	t.Run("UnsupportedBackend", func(t *testing.T) {
		docker := *cfg
		docker.Sandbox.Backend = "docker"
		_, err := NewExecutor(zaptest.NewLogger(t), &docker)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported backend")
	})
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{Grace: -1}.withDefaults()
	assert.Equal(t, DefaultConfig(), cfg)

	custom := Config{Timeout: time.Second, Grace: 0, MaxOutputBytes: 10, MaxCallStackSize: 5}.withDefaults()
	assert.Equal(t, time.Second, custom.Timeout)
	assert.Equal(t, time.Duration(0), custom.Grace)
	assert.Equal(t, 10, custom.MaxOutputBytes)
}
