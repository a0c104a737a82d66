package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitConfiguresGlobalLogger(t *testing.T) {
	t.Cleanup(func() { Set(nil) })

	require.NoError(t, Init("debug"))
	require.True(t, global.Load().Core().Enabled(zap.DebugLevel))

	require.NoError(t, Init("not-a-level"))
	require.False(t, global.Load().Core().Enabled(zap.DebugLevel))
	require.True(t, global.Load().Core().Enabled(zap.InfoLevel))
}

func TestWithModuleAddsField(t *testing.T) {
	core, recorded := observer.New(zap.DebugLevel)
	t.Cleanup(func() { Set(nil) })
	Set(zap.New(core))

	WithModule("roster").Info("reloaded")

	entries := recorded.All()
	require.Len(t, entries, 1)
	require.Equal(t, "reloaded", entries[0].Message)
	require.Equal(t, "roster", entries[0].ContextMap()["module"])
}
