// Package logger holds the process-wide zap logger.
package logger

import (
	"go.uber.org/zap"
)

// Log is a no-op until Initialize is called, so packages can log from tests
// without setup.
var Log *zap.Logger = zap.NewNop()

// Initialize builds a production JSON logger at the given level
// ("debug", "info", "warn", "error").
func Initialize(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl

	zl, err := cfg.Build()
	if err != nil {
		return err
	}

	Log = zl
	return nil
}

// OrDefault returns l, or the global logger when l is nil.
func OrDefault(l *zap.Logger) *zap.Logger {
	if l == nil {
		return Log
	}
	return l
}
