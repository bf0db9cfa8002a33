package logging

import (
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewObserved swaps the global loggers for observed ones and returns the
// captured entries plus a function that restores the previous loggers.
func NewObserved() (app *observer.ObservedLogs, access *observer.ObservedLogs, restore func()) {
	prevApp, prevAccess := App, Access

	appCore, appLogs := observer.New(zapcore.DebugLevel)
	accessCore, accessLogs := observer.New(zapcore.DebugLevel)
	App = NewLoggerFromCore(appCore)
	Access = NewAccessLoggerFromCore(accessCore)

	return appLogs, accessLogs, func() {
		App, Access = prevApp, prevAccess
	}
}
