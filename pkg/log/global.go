package log

import (
	"log/slog"
	"sync"
)

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewSlogLogger(nil)
)

// GetLogger returns the process-wide logger.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetLogger replaces the process-wide logger. nil restores the slog default.
func SetLogger(l Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if l == nil {
		l = NewSlogLogger(slog.Default())
	}
	globalLogger = l
}

// GetLoggerWithName returns the process-wide logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}
