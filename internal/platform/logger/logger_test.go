package logger_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/phrazzld/essaymark/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCIEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		want   slog.Level
		wantOK bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}

	for _, tc := range testCases {
		level, ok := logger.ParseLevel(tc.name)
		assert.Equal(t, tc.want, level, tc.name)
		assert.Equal(t, tc.wantOK, ok, tc.name)
	}
}

func TestNewRespectsLevel(t *testing.T) {
	clearCIEnv(t)
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	buf := &logger.TestLogBuffer{}
	l := logger.New(buf, "warn")

	l.Info("hidden message")
	l.Warn("visible message", "item_id", "rec1")

	entries, err := buf.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "visible message", entries[0]["msg"])
	assert.Equal(t, "rec1", entries[0]["item_id"])
	assert.Same(t, l, slog.Default(), "New should install the logger as default")
}

func TestCIHandlerAddsWorkflowMetadata(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")
	t.Setenv("GITHUB_RUN_ID", "987654")
	t.Setenv("GITHUB_WORKFLOW", "grade-essays")
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	buf := &logger.TestLogBuffer{}
	l := logger.New(buf, "info")
	l.With("component", "runner").Info("run started")

	logger.AssertLogField(t, buf, "ci_run_id", "987654")
	logger.AssertLogField(t, buf, "ci_workflow", "grade-essays")
	logger.AssertLogField(t, buf, "component", "runner")
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	testLogger, buf := logger.GetTestLogger(t)

	ctx := logger.WithLogger(context.Background(), testLogger)
	ctx = logger.WithRunID(ctx, "run-42")

	assert.Equal(t, "run-42", logger.RunIDFromContext(ctx))
	logger.FromContext(ctx).Info("from context")

	logger.AssertLogContains(t, buf, "from context")
	logger.AssertLogField(t, buf, "run_id", "run-42")
}

func TestFromContextOrDefaultFallback(t *testing.T) {
	t.Parallel()

	fallback, buf := logger.GetTestLogger(t)
	logger.FromContextOrDefault(context.Background(), fallback).Info("fallback used")

	logger.AssertLogContains(t, buf, "fallback used")
	assert.Empty(t, logger.RunIDFromContext(context.Background()))
}

func TestWithAttrsDoesNotRepeatRunID(t *testing.T) {
	t.Parallel()

	testLogger, buf := logger.GetTestLogger(t)

	ctx := logger.WithLogger(context.Background(), testLogger)
	ctx = logger.WithRunID(ctx, "run-7")
	ctx = logger.WithAttrs(ctx, "item_id", "rec1")
	ctx = logger.WithAttrs(ctx, "stage", "invoking")
	logger.FromContext(ctx).Info("nested")

	assert.Equal(t, 1, strings.Count(buf.String(), `"run_id"`))
	logger.AssertLogField(t, buf, "item_id", "rec1")
	logger.AssertLogField(t, buf, "stage", "invoking")
}
