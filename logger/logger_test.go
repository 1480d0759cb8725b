package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/LdDl/shapecount/config"
)

func TestLogBeforeInit(t *testing.T) {
	assert.NotNil(t, Log())
}

func TestBuildWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "process_log.log")
	l, err := Build(config.Log{Level: "debug", File: path})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l.Info("frame processed")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "frame processed")
	assert.Contains(t, string(data), "timestamp")
}

func TestBuildBadLevel(t *testing.T) {
	_, err := Build(config.Log{Level: "chatty"})
	assert.Error(t, err)
}

func TestInit(t *testing.T) {
	require.NoError(t, Init(config.Log{Level: "warn", Development: true}))
	assert.False(t, Log().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, Log().Core().Enabled(zapcore.WarnLevel))
	Sync()
}
