package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWith_RunID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	ctx := WithRunID(context.Background(), "run-123")
	assert.Equal(t, "run-123", RunID(ctx))

	With(ctx, logger).Info("hello", "entity", "asv")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-123", entry["run_id"])
	assert.Equal(t, "asv", entry["entity"])
}

func TestWith_NoRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug", "text")

	With(context.Background(), logger).Debug("quiet")
	assert.Contains(t, buf.String(), "quiet")
	assert.NotContains(t, buf.String(), "run_id")
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")
	ctx := WithRunID(context.Background(), "run-7")

	WithFields(ctx, logger, "entity", "emof", "strategy", "copy_append").Info("rows loaded", "rows", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-7", entry["run_id"])
	assert.Equal(t, "emof", entry["entity"])
	assert.Equal(t, "copy_append", entry["strategy"])
	assert.Equal(t, float64(3), entry["rows"])
}

func TestFromContext_UsesDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	slog.SetDefault(New(&buf, "info", "text"))

	FromContext(WithRunID(context.Background(), "run-9")).Info("reset started")
	assert.Contains(t, buf.String(), "run_id=run-9")
	assert.Contains(t, buf.String(), "reset started")
}
