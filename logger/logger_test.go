package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/isdmx/dataquery/config"
)

func TestLoggerNew(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		level   string
		wantErr string
	}{
		{"DevelopmentDebug", "development", "debug", ""},
		{"ProductionInfo", "production", "info", ""},
		{"ProductionWarn", "production", "warn", ""},
		{"ProductionFatal", "production", "fatal", ""},
		{"UnknownMode", "verbose", "info", "invalid logging mode"},
		{"UnknownLevel", "production", "loud", "invalid logging level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.mode, tt.level)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(mustLevel(t, tt.level)))
			_ = log.Sync()
		})
	}

	t.Run("LevelFiltersBelow", func(t *testing.T) {
		log, err := New("production", "warn")
		require.NoError(t, err)
		assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("FileOutput", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		log, err := New("production", "info", path)
		require.NoError(t, err)

		log.Info("written to file")
		_ = log.Sync()

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(data), "written to file"))
	})
}

func mustLevel(t *testing.T, level string) zapcore.Level {
	t.Helper()
	l, err := zapcore.ParseLevel(level)
	require.NoError(t, err)
	return l
}

func TestLoggerNewFromConfig(t *testing.T) {
	t.Run("OutputsFromConfig", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "runs.log")
		cfg := &config.Config{
			Logging: config.LoggingConfig{Mode: "production", Level: "debug", Outputs: []string{path}},
		}
		log, err := NewFromConfig(cfg)
		require.NoError(t, err)

		ForExecution(log, "exec-9").Debug("script compiled")
		_ = log.Sync()

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"execution_id":"exec-9"`)
	})

	t.Run("RejectsUnknownMode", func(t *testing.T) {
		cfg := &config.Config{
			Logging: config.LoggingConfig{Mode: "quiet", Level: "info"},
		}
		_, err := NewFromConfig(cfg)
		assert.Error(t, err)
	})
}

func TestForExecution(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ForExecution(base, "exec-1").Info("script finished")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "exec-1", entries[0].ContextMap()["execution_id"])

	assert.NotNil(t, ForExecution(nil, "exec-2"))
}
