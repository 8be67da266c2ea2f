package logging

import (
	"bytes"
	"encoding/json"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/ragcore/pkg/types"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Output: zapcore.AddSync(&buf)})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("indexed documents", zap.Int("documents", 3))
	require.NoError(t, logger.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1, "debug entries must be filtered at info level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "indexed documents", entry["msg"])
	assert.EqualValues(t, 3, entry["documents"])
	assert.Contains(t, entry, "ts")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Output: zapcore.AddSync(&buf)})
	require.NoError(t, err)

	logger.Debug("starting", zap.String("backend", "memory"))
	require.NoError(t, logger.Sync())

	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "starting")
	assert.Contains(t, buf.String(), `"backend": "memory"`)
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "unknown level", cfg: Config{Level: "verbose"}},
		{name: "unknown format", cfg: Config{Format: "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.ErrorIs(t, err, types.ErrInvalidConfiguration)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"debug": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestIsStdoutSyncError(t *testing.T) {
	assert.True(t, isStdoutSyncError(syscall.EINVAL))
	assert.True(t, isStdoutSyncError(syscall.ENOTTY))
	assert.False(t, isStdoutSyncError(syscall.EIO))
}

func TestNewObserved(t *testing.T) {
	logger, logs := NewObserved(zapcore.WarnLevel)
	logger.Info("ignored")
	logger.Warn("slow query", zap.Duration("elapsed", 0))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "slow query", logs.All()[0].Message)
}
