// Package logger owns the process-wide structured logger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global logger instance
	Logger *zap.SugaredLogger
	// Flag to track if JSON output is enabled
	JSONOutput bool
)

func init() {
	// Safe no-op logger at package load time so callers never hit a nil
	// pointer before Initialize() runs.
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global logger based on the JSON output preference.
func Initialize(jsonOutput bool) error {
	JSONOutput = jsonOutput

	var zapLogger *zap.Logger
	var err error

	if jsonOutput {
		// JSON structured output for machine consumption
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		zapLogger, err = config.Build()
	} else {
		// Human-readable console output
		config := zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapLogger, err = config.Build()
	}
	if err != nil {
		return err
	}

	Logger = zapLogger.Sugar()
	return nil
}

// Named returns a child of the global logger with the given name.
func Named(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() {
	_ = Logger.Sync()
}
