package logger

import corelogger "github.com/kilianp07/dockyard/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// Options controls the zerolog output shared by every component logger.
type Options struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string `json:"level"`
	// Format is json or console. Empty defers to APP_ENV.
	Format string `json:"format"`
}

var defaults Options

// Configure sets the options used by subsequent New calls.
func Configure(o Options) { defaults = o }

// New returns a Logger for the given component. The environment is detected via
// the APP_ENV variable unless a format was configured.
func New(component string) Logger {
	return NewZerologLogger(component, defaults)
}
