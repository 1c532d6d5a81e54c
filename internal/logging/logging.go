// Package logging wires fbnet's internal diagnostics through zap, with an
// optional rotating file sink via lumberjack. It mirrors the logging shim
// carried by the teacher codebase: a process-wide *zap.SugaredLogger that
// library internals (the TCP and UDP server loops and connection panic
// recovery) log through instead of fmt.Println.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.RWMutex
	logger *zap.SugaredLogger
)

func init() {
	logger = newDefault().Sugar()
}

func newDefault() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	l, err := cfg.Build()
	if err != nil {
		// Build only fails on a malformed config; fall back to a no-op
		// logger rather than panicking inside library init.
		return zap.NewNop()
	}
	return l
}

// FileConfig configures the optional rotating file sink.
type FileConfig struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// UseFile redirects logging to a lumberjack-rotated file at the given level,
// replacing the default stderr logger (nothing is written to stderr after).
func UseFile(fc FileConfig, level zapcore.Level) {
	rotator := &lumberjack.Logger{
		Filename:   fc.Filename,
		MaxSize:    fc.MaxSizeMB,
		MaxBackups: fc.MaxBackups,
		MaxAge:     fc.MaxAgeDays,
		Compress:   fc.Compress,
	}

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.AddSync(rotator), level)

	mu.Lock()
	logger = zap.New(core).Sugar()
	mu.Unlock()
}

// SetLogger replaces the process-wide logger, e.g. for tests that want to
// assert on captured output.
func SetLogger(l *zap.SugaredLogger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Errorf logs a formatted error-level message.
func Errorf(format string, args ...interface{}) {
	current().Errorf(format, args...)
}

// Warnf logs a formatted warn-level message.
func Warnf(format string, args ...interface{}) {
	current().Warnf(format, args...)
}

// Debugf logs a formatted debug-level message.
func Debugf(format string, args ...interface{}) {
	current().Debugf(format, args...)
}

// LogErr logs err at error level if non-nil; it returns err unchanged so it
// can be used inline: `return logging.LogErr(conn.Close())`.
func LogErr(err error) error {
	if err != nil {
		current().Errorw("operation failed", "error", err)
	}
	return err
}
