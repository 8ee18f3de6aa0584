// Package logger is the process wide logging facade. Backends are registered
// once at start-up with Init; until then every call is a no-op, which keeps
// library packages quiet in tests.
package logger

import "sync/atomic"

// LoggerInstance defines the interface for logging backends.
type LoggerInstance interface {
	Log(message string, keyvals ...any)
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

type level int

const (
	levelLog level = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
	levelFatal
)

// Logger holds multiple logging backends and dispatches log calls to all of them.
type Logger struct {
	instances []LoggerInstance
}

// Layout runs and queue consumers log from their own goroutines, so the
// backend set is swapped atomically.
var singleton atomic.Pointer[Logger]

// Init replaces the global backends. Calling it without backends silences
// logging again.
func Init(instances ...LoggerInstance) {
	if len(instances) == 0 {
		singleton.Store(nil)
		return
	}
	singleton.Store(&Logger{instances: instances})
}

func dispatch(lvl level, message string, keyvals []any) {
	logger := singleton.Load()
	if logger == nil {
		return
	}

	for _, instance := range logger.instances {
		switch lvl {
		case levelDebug:
			instance.Debug(message, keyvals...)
		case levelInfo:
			instance.Info(message, keyvals...)
		case levelWarn:
			instance.Warn(message, keyvals...)
		case levelError:
			instance.Error(message, keyvals...)
		case levelFatal:
			instance.Fatal(message, keyvals...)
		default:
			instance.Log(message, keyvals...)
		}
	}
}

// Log writes a message at the default log level to all configured backends.
func Log(message string, keyvals ...any) {
	dispatch(levelLog, message, keyvals)
}

func Info(message string, keyvals ...any) {
	dispatch(levelInfo, message, keyvals)
}

func Warn(message string, keyvals ...any) {
	dispatch(levelWarn, message, keyvals)
}

func Error(message string, keyvals ...any) {
	dispatch(levelError, message, keyvals)
}

// Debug messages are dropped by backends that are not in debug mode.
func Debug(message string, keyvals ...any) {
	dispatch(levelDebug, message, keyvals)
}

// Fatal writes a message at FATAL level. Backends terminate the program.
func Fatal(message string, keyvals ...any) {
	dispatch(levelFatal, message, keyvals)
}
