// Package monitoring provides the package-level diagnostic logger shared by
// the analysis engine. Library code logs through Logf; binaries choose the
// sink with SetLogger, typically a zap SugaredLogger built by NewZapLogger.
package monitoring

import (
	"fmt"
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs failures that degrade a result without aborting it, such as a
// failed persistence write. It defaults to log.Printf and may be replaced by
// SetWarnLogger.
var Warnf func(format string, v ...interface{}) = log.Printf

// SetWarnLogger replaces the warning logger. Passing nil will set a no-op logger.
func SetWarnLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Warnf = func(string, ...interface{}) {}
		return
	}
	Warnf = f
}

// NewZapLogger builds a zap logger at the given level ("debug", "info",
// "warn", "error"; anything else means info). jsonOutput selects the JSON
// encoder, otherwise the console encoder is used.
func NewZapLogger(level string, jsonOutput bool) (*zap.SugaredLogger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoding := "console"
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	if jsonOutput {
		encoding = "json"
		encoderCfg = zap.NewProductionEncoderConfig()
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Encoding:         encoding,
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}
	return logger.Sugar(), nil
}

// ZapLogf adapts a SugaredLogger to the Logf signature at info level.
func ZapLogf(l *zap.SugaredLogger) func(format string, v ...interface{}) {
	if l == nil {
		return nil
	}
	return l.Infof
}

// ZapWarnf adapts a SugaredLogger to the Warnf signature at warn level.
func ZapWarnf(l *zap.SugaredLogger) func(format string, v ...interface{}) {
	if l == nil {
		return nil
	}
	return l.Warnf
}
