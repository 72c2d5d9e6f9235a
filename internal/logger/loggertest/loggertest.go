// Package loggertest provides loggers that record entries for assertions.
package loggertest

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/VickramC07/BikeGuard/internal/logger"
)

// NewObserved returns a logger recording every entry at or above level
func NewObserved(level zapcore.Level) (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &logger.Logger{Logger: zap.New(core)}, logs
}
