package logger

import "github.com/jathurchan/ralock/types"

// NoOpLogger discards every entry. Tests set the per-level hooks to observe
// what a component logs.
type NoOpLogger struct {
	DebugwFunc func(string, ...any)
	InfowFunc  func(string, ...any)
	WarnwFunc  func(string, ...any)
	ErrorwFunc func(string, ...any)
	FatalwFunc func(string, ...any)
}

func (l *NoOpLogger) Debugw(msg string, keysAndValues ...any) {
	if l.DebugwFunc != nil {
		l.DebugwFunc(msg, keysAndValues...)
	}
}

func (l *NoOpLogger) Infow(msg string, keysAndValues ...any) {
	if l.InfowFunc != nil {
		l.InfowFunc(msg, keysAndValues...)
	}
}

func (l *NoOpLogger) Warnw(msg string, keysAndValues ...any) {
	if l.WarnwFunc != nil {
		l.WarnwFunc(msg, keysAndValues...)
	}
}

func (l *NoOpLogger) Errorw(msg string, keysAndValues ...any) {
	if l.ErrorwFunc != nil {
		l.ErrorwFunc(msg, keysAndValues...)
	}
}

// Fatalw never exits the process.
func (l *NoOpLogger) Fatalw(msg string, keysAndValues ...any) {
	if l.FatalwFunc != nil {
		l.FatalwFunc(msg, keysAndValues...)
	}
}

// With returns the same NoOpLogger; context is not stored.
func (l *NoOpLogger) With(keysAndValues ...any) Logger { return l }

// WithNodeID returns the same NoOpLogger; context is not stored.
func (l *NoOpLogger) WithNodeID(id types.NodeID) Logger { return l }

// WithRound returns the same NoOpLogger; context is not stored.
func (l *NoOpLogger) WithRound(roundID string) Logger { return l }

// WithComponent returns the same NoOpLogger; context is not stored.
func (l *NoOpLogger) WithComponent(name string) Logger { return l }

// NewNoOpLogger returns a Logger that discards all log messages.
// Can be type-asserted to *NoOpLogger for injecting test behavior.
func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}
