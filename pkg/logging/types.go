package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log message
type LogLevel string

const (
	// LogLevelDebug is for debug messages
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is for informational messages
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn is for warning messages
	LogLevelWarn LogLevel = "warn"
	// LogLevelError is for error messages
	LogLevelError LogLevel = "error"
)

// DefaultMaxSize is the size at which a log file is rotated when no size is configured
const DefaultMaxSize = 10 * 1024 * 1024

// Config holds logging configuration
type Config struct {
	Level         LogLevel
	AppLogPath    string // empty logs to stderr
	AccessLogPath string // empty discards access records
	MaxSize       int64
}

var (
	// App is the global application logger
	App *AppLogger
	// Access is the global access logger for authentication and submission records
	Access AccessLogger
)

func init() {
	// No-op loggers until Initialize is called
	App = NewNopLogger()
	Access = NewNopAccessLogger()
}

// ParseLevel converts a textual level into a LogLevel
func ParseLevel(s string) (LogLevel, error) {
	switch LogLevel(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return LogLevelInfo, nil
	case LogLevelDebug:
		return LogLevelDebug, nil
	case LogLevelInfo:
		return LogLevelInfo, nil
	case LogLevelWarn, "warning":
		return LogLevelWarn, nil
	case LogLevelError:
		return LogLevelError, nil
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Initialize sets up the global loggers
func Initialize(config *Config) error {
	level := config.Level
	if level == "" {
		level = LogLevelInfo
	}
	maxSize := config.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	newApp, err := NewAppLogger(config.AppLogPath, level, maxSize)
	if err != nil {
		return fmt.Errorf("failed to initialize app logger: %w", err)
	}

	newAccess, err := NewAccessLogger(config.AccessLogPath, maxSize)
	if err != nil {
		_ = newApp.Close()
		return fmt.Errorf("failed to initialize access logger: %w", err)
	}

	App = newApp
	Access = newAccess
	return nil
}

// Close flushes and closes the global loggers
func Close() error {
	appErr := App.Close()
	accessErr := Access.Close()
	if appErr != nil {
		return appErr
	}
	return accessErr
}
