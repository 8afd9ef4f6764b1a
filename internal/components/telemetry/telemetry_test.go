package telemetry

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	inner := &RecordingAPI{}
	scoped := NewScopedAPI("manifest", inner)

	scoped.ReportBroken("reconciler.load", "a")
	scoped.ReportWarning("reconciler.fetch", "b")
	scoped.ReportDebug("loaded")
	scoped.ReportCount("reconciler.fetched", 3)

	require.Equal(t, "manifest: reconciler.load", inner.Reports("broken")[0].ID)
	require.Equal(t, []any{"a"}, inner.Reports("broken")[0].Params)
	require.Equal(t, "manifest: reconciler.fetch", inner.Reports("warning")[0].ID)
	require.Equal(t, "manifest: loaded", inner.Reports("debug")[0].ID)
	require.Equal(t, []any{int64(3)}, inner.Reports("count")[0].Params)
}

func TestLevelFromString(t *testing.T) {
	table := []struct {
		input    string
		expected slog.Level
	}{
		{input: "debug", expected: slog.LevelDebug},
		{input: " WARN ", expected: slog.LevelWarn},
		{input: "warning", expected: slog.LevelWarn},
		{input: "error", expected: slog.LevelError},
		{input: "info", expected: slog.LevelInfo},
		{input: "", expected: slog.LevelInfo},
		{input: "verbose", expected: slog.LevelInfo},
	}

	for _, row := range table {
		require.Equal(t, row.expected, LevelFromString(row.input), row.input)
	}
}
