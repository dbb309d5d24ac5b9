package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLoggerIncludesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentStaging, Output: &buf})

	logger.With(FieldDate, "2025-02-19").Info("Staging entry saved")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, ComponentStaging, line[FieldComponent])
	assert.Equal(t, "2025-02-19", line[FieldDate])
	assert.Equal(t, ComponentStaging, logger.Component())
}

func TestLogOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Output: &buf})

	logger.LogOperation(context.Background(), OpFinalize, errors.New("boom"), NewFields().Date("2025-02-19"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, false, line[FieldSuccess])
	assert.Equal(t, "boom", line[FieldError])
	assert.Equal(t, OpFinalize, line[FieldOperation])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestFromContext(t *testing.T) {
	logger := New(DefaultConfig()).WithComponent(ComponentHTTP)
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}

func TestFieldsArgsSorted(t *testing.T) {
	args := NewFields().With("b", 2).With("a", 1).Err(nil).Args()
	assert.Equal(t, []any{"a", 1, "b", 2}, args)
}
