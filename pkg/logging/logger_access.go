package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AccessLogger records who did what: logins, quest submissions and PIN recoveries
type AccessLogger interface {
	// LogAuth logs authentication operations
	LogAuth(operation string, team string, status string, details ...interface{})
	// LogQuest logs quest submission outcomes
	LogQuest(team string, quest int, status string, details ...interface{})
	Close() error
}

type accessLogger struct {
	logger *zap.Logger
	writer *RotatingWriter
}

// NewAccessLogger creates a new access logger. An empty logPath discards records.
func NewAccessLogger(logPath string, maxSize int64) (AccessLogger, error) {
	if logPath == "" {
		return NewNopAccessLogger(), nil
	}

	rw, err := NewRotatingWriter(logPath, maxSize)
	if err != nil {
		return nil, fmt.Errorf("opening access log file: %w", err)
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.LevelKey = ""
	cfg.CallerKey = ""
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.AddSync(rw), zapcore.InfoLevel)

	return &accessLogger{logger: zap.New(core), writer: rw}, nil
}

// NewNopAccessLogger returns an access logger that discards everything
func NewNopAccessLogger() AccessLogger {
	return &accessLogger{logger: zap.NewNop()}
}

// NewAccessLoggerFromCore wraps an existing zap core, mostly useful for tests
func NewAccessLoggerFromCore(core zapcore.Core) AccessLogger {
	return &accessLogger{logger: zap.New(core)}
}

func (l *accessLogger) LogAuth(operation string, team string, status string, details ...interface{}) {
	l.logger.Sugar().Infow(operation, append([]interface{}{"team", team, "status", status}, details...)...)
}

func (l *accessLogger) LogQuest(team string, quest int, status string, details ...interface{}) {
	l.logger.Sugar().Infow("quest_submit", append([]interface{}{"team", team, "quest", quest, "status", status}, details...)...)
}

func (l *accessLogger) Close() error {
	_ = l.logger.Sync()
	if l.writer != nil {
		return l.writer.Close()
	}
	return nil
}
