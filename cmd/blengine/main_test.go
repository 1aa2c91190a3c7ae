package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/blengine/engine/internal/config"
)

func TestNewLogger(t *testing.T) {
	log, err := newLogger(config.LoggingConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = newLogger(config.LoggingConfig{Level: "bogus", Format: "console"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))

	_, err = newLogger(config.LoggingConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestRestoreWorldWithoutStore(t *testing.T) {
	restored, err := restoreWorld(nil, nil, "autosave")
	require.NoError(t, err)
	assert.False(t, restored)
}
