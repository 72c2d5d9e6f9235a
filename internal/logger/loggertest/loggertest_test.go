package loggertest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewObserved_RecordsFields(t *testing.T) {
	log, logs := NewObserved(zapcore.DebugLevel)

	log.Named("hub").With("transport", "websocket").Warn("subscriber dropped", "error", errors.New("broken pipe"), 42, "ignored")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "subscriber dropped", entry.Message)
	assert.Equal(t, "hub", entry.LoggerName)
	ctx := entry.ContextMap()
	assert.Equal(t, "websocket", ctx["transport"])
	assert.Equal(t, "broken pipe", ctx["error"])
}

func TestNewObserved_Level(t *testing.T) {
	log, logs := NewObserved(zapcore.WarnLevel)
	log.Info("quiet")
	log.Error("loud")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "loud", logs.All()[0].Message)
}
