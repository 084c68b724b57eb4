package logger

import corelogger "github.com/CWILDMOUNTAIN/ha-wattwise/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger = corelogger.NopLogger

// New returns a Logger for the given component. The environment is
// detected via the WW_ENV variable.
func New(component string) Logger {
	return NewZerologLogger(component)
}
