package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		level slog.Level
		ok    bool
		err   bool
	}{
		{"", 0, false, false},
		{"off", 0, false, false},
		{"debug", slog.LevelDebug, true, false},
		{"WARN", slog.LevelWarn, true, false},
		{"info+2", slog.LevelInfo + 2, true, false},
		{"loud", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			level, ok, err := ParseLevel(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.level, level)
		})
	}
}

func TestNewWriter_RenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, slog.LevelInfo, false)
	logger.Info("failed", "error", "boom")
	logger.Debug("hidden")

	assert.Contains(t, buf.String(), "err=boom")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, slog.LevelDebug, true).Debug("cycle", "model", "m", "cycle", 3)
	assert.Contains(t, buf.String(), `"model":"m"`)
	assert.Contains(t, buf.String(), `"cycle":3`)
}

func TestFromFlag(t *testing.T) {
	logger, err := FromFlag("off")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	logger, err = FromFlag("debug")
	require.NoError(t, err)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	_, err = FromFlag("nope")
	assert.Error(t, err)
}
