package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AppLogger is a leveled key/value logger backed by zap
type AppLogger struct {
	sugar  *zap.SugaredLogger
	writer *RotatingWriter // nil if logging to stderr
}

// NewAppLogger creates a new application logger. An empty logPath logs to stderr.
func NewAppLogger(logPath string, level LogLevel, maxSize int64) (*AppLogger, error) {
	var sink zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	var rotatingWriter *RotatingWriter

	if logPath != "" {
		rw, err := NewRotatingWriter(logPath, maxSize)
		if err != nil {
			return nil, fmt.Errorf("creating rotating writer: %w", err)
		}
		sink = zapcore.AddSync(rw)
		rotatingWriter = rw
	}

	core := zapcore.NewCore(newEncoder(), sink, level.zapLevel())
	return &AppLogger{
		sugar:  zap.New(core).Sugar(),
		writer: rotatingWriter,
	}, nil
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *AppLogger {
	return &AppLogger{sugar: zap.NewNop().Sugar()}
}

// NewLoggerFromCore wraps an existing zap core, mostly useful for tests
func NewLoggerFromCore(core zapcore.Core) *AppLogger {
	return &AppLogger{sugar: zap.New(core).Sugar()}
}

func newEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// Debug logs a debug message with key/value pairs
func (l *AppLogger) Debug(message string, keyvals ...interface{}) {
	l.sugar.Debugw(message, keyvals...)
}

// Info logs an informational message with key/value pairs
func (l *AppLogger) Info(message string, keyvals ...interface{}) {
	l.sugar.Infow(message, keyvals...)
}

// Warn logs a warning with key/value pairs
func (l *AppLogger) Warn(message string, keyvals ...interface{}) {
	l.sugar.Warnw(message, keyvals...)
}

// Error logs an error with key/value pairs
func (l *AppLogger) Error(message string, keyvals ...interface{}) {
	l.sugar.Errorw(message, keyvals...)
}

// With returns a child logger that always carries the given key/value pairs
func (l *AppLogger) With(keyvals ...interface{}) *AppLogger {
	return &AppLogger{sugar: l.sugar.With(keyvals...)}
}

// Close flushes buffered entries and closes the log file, if any
func (l *AppLogger) Close() error {
	_ = l.sugar.Sync()
	if l.writer != nil {
		return l.writer.Close()
	}
	return nil
}
