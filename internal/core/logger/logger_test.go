package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	l, cleanup := New(Options{Level: "not-a-level", JSON: true})
	defer cleanup()
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_WithFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.log")
	l, cleanup := New(Options{Level: "debug", File: file, MaxSizeMB: 1, Service: "instantclip-test"})
	l.Info("hello", zap.String("k", "v"))
	cleanup()

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"hello"`)
	assert.Contains(t, string(b), `"service":"instantclip-test"`)
}

func TestToWriter(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	w := ToWriter(zap.New(core), zapcore.WarnLevel)

	n, err := w.Write([]byte("something happened\n"))
	require.NoError(t, err)
	assert.Equal(t, len("something happened\n"), n)

	require.Equal(t, 1, logs.Len())
	e := logs.All()[0]
	assert.Equal(t, "something happened", e.Message)
	assert.Equal(t, zapcore.WarnLevel, e.Level)
}
