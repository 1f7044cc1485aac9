// Package log wraps zap behind a small package-level API.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// sugar defaults to a nop logger so the package is usable before Init.
var sugar = zap.NewNop().Sugar()

// Init builds the global logger. level is a zap level name ("debug",
// "info", ...), format is "json" or "console", and outputPath is an
// optional directory to mirror log output into.
func Init(level, format, outputPath string) {
	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel.SetLevel(zap.InfoLevel)
	}

	var zapConfig zap.Config
	if format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.Encoding = "console"
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.Encoding = "json"
	}
	zapConfig.Level = logLevel
	zapConfig.OutputPaths = []string{"stdout"}
	if outputPath != "" {
		_ = os.MkdirAll(outputPath, os.ModePerm)
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, outputPath+"/app.log")
	}

	logger, err := zapConfig.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	sugar = logger.Sugar()
}

// Info logs an info-level message.
func Info(msg string) {
	sugar.Info(msg)
}

// Infof logs an info-level message with a format string.
func Infof(template string, args ...interface{}) {
	sugar.Infof(template, args...)
}

// Infow logs an info-level message with structured key-value pairs.
func Infow(msg string, keysAndValues ...interface{}) {
	sugar.Infow(msg, keysAndValues...)
}

// Debugf logs a debug-level message with a format string.
func Debugf(template string, args ...interface{}) {
	sugar.Debugf(template, args...)
}

// Warnf logs a warn-level message with a format string.
func Warnf(template string, args ...interface{}) {
	sugar.Warnf(template, args...)
}

// Error logs an error-level message with the error attached.
func Error(msg string, err error) {
	sugar.Errorw(msg, "error", err)
}

// Errorf logs an error-level message with a format string.
func Errorf(template string, args ...interface{}) {
	sugar.Errorf(template, args...)
}

// Fatal logs the message and error, then exits.
func Fatal(msg string, err error) {
	sugar.Fatalw(msg, "error", err)
}

// Fatalf logs a fatal-level message with a format string, then exits.
func Fatalf(template string, args ...interface{}) {
	sugar.Fatalf(template, args...)
}

// Sync flushes buffered log entries. Call before exit.
func Sync() {
	_ = sugar.Sync()
}
