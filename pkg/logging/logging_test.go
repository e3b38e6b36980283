package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit_InvalidLevel(t *testing.T) {
	err := Init(&Config{Level: "loud", Format: "console"})
	require.Error(t, err)
}

func TestInit_InvalidFormat(t *testing.T) {
	err := Init(&Config{Level: "info", Format: "xml"})
	require.Error(t, err)
}

func TestInit_JSON(t *testing.T) {
	defer Set(nil)
	require.NoError(t, Init(&Config{Level: "warn", Format: "json"}))
	require.False(t, L().Core().Enabled(zap.InfoLevel))
	require.True(t, L().Core().Enabled(zap.WarnLevel))
}

func TestSet_RoutesPackageHelpers(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Set(zap.New(core))
	defer Set(nil)

	Debug("built layout", zap.String("layout", "Point"), zap.Int("size", 4))
	Warn("odd layout")

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "built layout", entries[0].Message)
	require.Equal(t, "Point", entries[0].ContextMap()["layout"])
	require.Equal(t, zap.WarnLevel, entries[1].Level)
}

func TestSet_NilRestoresNop(t *testing.T) {
	Set(nil)
	require.NotPanics(t, func() { Info("dropped") })
}
