package logging

import (
	"log/slog"
	"os"
	"sync"
)

// Sink consumes a single diagnostic message.
type Sink func(msg string)

// Sinks holds the process-wide diagnostic sinks used by library code that has
// no request context. Nil fields are treated as no-ops.
type Sinks struct {
	Info  Sink
	Warn  Sink
	Error Sink
	Debug Sink
}

var (
	sinksMu      sync.RWMutex
	currentSinks = defaultSinks()
)

func defaultSinks() Sinks {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return Sinks{
		Warn: func(msg string) {
			logger.Warn(msg)
		},
		Error: func(msg string) {
			logger.Error(msg)
		},
	}
}

// SetSinks replaces the process-wide diagnostic sinks. Intended as a one-time
// configuration call at process start. By default Warn and Error log to
// stderr and Info and Debug are dropped.
func SetSinks(sinks Sinks) {
	sinksMu.Lock()
	defer sinksMu.Unlock()
	currentSinks = sinks
}

func Info(msg string) {
	sinksMu.RLock()
	sink := currentSinks.Info
	sinksMu.RUnlock()
	if sink != nil {
		sink(msg)
	}
}

func Warn(msg string) {
	sinksMu.RLock()
	sink := currentSinks.Warn
	sinksMu.RUnlock()
	if sink != nil {
		sink(msg)
	}
}

func Error(msg string) {
	sinksMu.RLock()
	sink := currentSinks.Error
	sinksMu.RUnlock()
	if sink != nil {
		sink(msg)
	}
}

func Debug(msg string) {
	sinksMu.RLock()
	sink := currentSinks.Debug
	sinksMu.RUnlock()
	if sink != nil {
		sink(msg)
	}
}
