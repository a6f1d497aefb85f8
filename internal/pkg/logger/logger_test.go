package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestSetupJSONFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "warn", "json")

	Info("dropped")
	Warn("kept", "wallet", "abc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "abc", entry["wallet"])
}

func TestLogErrorUsesContextLogger(t *testing.T) {
	var global, scoped bytes.Buffer
	Setup(&global, "info", "text")
	reqLogger := slog.New(slog.NewTextHandler(&scoped, nil)).With("request_id", "r-1")
	ctx := WithContext(context.Background(), reqLogger)

	LogError(ctx, errors.New("boom"), "failed")
	LogError(ctx, nil, "ignored")

	assert.Empty(t, global.String())
	assert.Contains(t, scoped.String(), "request_id=r-1")
	assert.Contains(t, scoped.String(), "error=boom")
	assert.NotContains(t, scoped.String(), "ignored")
}

func TestFromContextFallsBack(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, "info", "json")
	assert.Same(t, l, FromContext(context.Background()))
}
