// Package logger provides the process-wide logger used by memtext for
// connection lifecycle and operational events. It is never used on the
// per-request hot path.
package logger

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global        *zap.SugaredLogger
	disabled      atomic.Bool
	defaultLevel  = zap.NewAtomicLevelAt(zap.InfoLevel)
	componentTags = []any{"component", "memtext"}
)

func init() {
	SetLogger(newSugaredLogger(defaultLevel))
}

// SetLogger replaces the global logger with l.
func SetLogger(l *zap.SugaredLogger) {
	global = l
}

// GetLogger returns the current global logger.
func GetLogger() *zap.SugaredLogger {
	return global
}

// Disable turns off all logging, globally.
func Disable() {
	disabled.Store(true)
}

// Disabled reports whether logging is currently turned off.
func Disabled() bool {
	return disabled.Load()
}

func newSugaredLogger(level zapcore.LevelEnabler, options ...zap.Option) *zap.SugaredLogger {
	if level == nil {
		level = defaultLevel
	}
	return zap.New(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(zapcore.EncoderConfig{
				TimeKey:        "ts",
				LevelKey:       "level",
				NameKey:        "logger",
				CallerKey:      "caller",
				MessageKey:     "message",
				StacktraceKey:  "stacktrace",
				LineEnding:     zapcore.DefaultLineEnding,
				EncodeLevel:    capitalLevelEncoder,
				EncodeTime:     zapcore.ISO8601TimeEncoder,
				EncodeDuration: zapcore.SecondsDurationEncoder,
				EncodeCaller:   zapcore.ShortCallerEncoder,
			}),
			zapcore.AddSync(os.Stdout),
			level,
		),
		options...,
	).Sugar().With(componentTags...)
}

func capitalLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	level := ""
	switch l {
	case zapcore.ErrorLevel:
		level = "ERR"
	case zapcore.WarnLevel:
		level = "WARNING"
	default:
		level = l.CapitalString()
	}
	enc.AppendString(level)
}

// Debug logs a debug-level message, used for per-endpoint connect/dial detail.
func Debug(args ...any) {
	if log := GetLogger(); !Disabled() {
		log.Debug(args...)
	}
}

// Debugf is the formatted counterpart of Debug.
func Debugf(format string, args ...any) {
	if log := GetLogger(); !Disabled() {
		log.Debugf(format, args...)
	}
}

// Info logs server roster changes (server list assigned, bucket ring rebuilt).
func Info(args ...any) {
	if log := GetLogger(); !Disabled() {
		log.Info(args...)
	}
}

// Infof is the formatted counterpart of Info.
func Infof(format string, args ...any) {
	if log := GetLogger(); !Disabled() {
		log.Infof(format, args...)
	}
}

// Warn logs recoverable conditions: a server marked dead, a cooldown retry.
func Warn(args ...any) {
	if log := GetLogger(); !Disabled() {
		log.Warn(args...)
	}
}

// Warnf is the formatted counterpart of Warn.
func Warnf(format string, args ...any) {
	if log := GetLogger(); !Disabled() {
		log.Warnf(format, args...)
	}
}

// Error logs I/O and protocol failures after the socket has been closed.
func Error(args ...any) {
	if log := GetLogger(); !Disabled() {
		log.Error(args...)
	}
}

// Errorf is the formatted counterpart of Error.
func Errorf(format string, args ...any) {
	if log := GetLogger(); !Disabled() {
		log.Errorf(format, args...)
	}
}
