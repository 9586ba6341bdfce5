package logger

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
		{"", slog.LevelInfo},
		{" INFO ", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestNew_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "warn", Service: "progress-ranking", Output: &buf})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("kept", StudentID, "s1")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, "progress-ranking", record[Service])
	assert.Equal(t, "s1", record[StudentID])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Format: FormatText, Output: &buf})
	require.NoError(t, err)

	log.Info("hello", Month, "2025-03")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "month=2025-03")
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestContextRoundTrip(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	log, err := New(Options{Output: &bytes.Buffer{}})
	require.NoError(t, err)
	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
}
