package logger

import (
	"fmt"
	"log"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/jathurchan/ralock/types"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// parseLogLevel maps a string to a LogLevel. Defaults to LevelInfo on unknown input.
func parseLogLevel(levelStr string) LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// StdLogger logs messages using Go's standard library log package.
// Persistent context is printed in sorted key order so lines from
// different goroutines stay comparable.
type StdLogger struct {
	context  map[string]any
	minLevel LogLevel
}

// NewStdLogger returns a new StdLogger with a minimum log level filter.
func NewStdLogger(minLevelStr string) Logger {
	return &StdLogger{
		context:  make(map[string]any),
		minLevel: parseLogLevel(minLevelStr),
	}
}

// log outputs a structured log entry if the level meets the threshold.
func (l *StdLogger) log(level LogLevel, levelStr string, msg string, kvs ...any) {
	if level < l.minLevel {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(levelStr), msg)
	for _, k := range slices.Sorted(maps.Keys(l.context)) {
		fmt.Fprintf(&b, " %s=%v", k, l.context[k])
	}
	eachPair(kvs, func(k string, v any) { fmt.Fprintf(&b, " %s=%v", k, v) })

	log.Println(b.String())

	if level == LevelFatal {
		os.Exit(1)
	}
}

// eachPair calls fn for every (string key, value) pair in kvs. A trailing
// key without a value and pairs with non-string keys are skipped.
func eachPair(kvs []any, fn func(string, any)) {
	for i := 0; i+1 < len(kvs); i += 2 {
		if key, ok := kvs[i].(string); ok {
			fn(key, kvs[i+1])
		}
	}
}

func (l *StdLogger) Debugw(msg string, kvs ...any) { l.log(LevelDebug, "debug", msg, kvs...) }
func (l *StdLogger) Infow(msg string, kvs ...any)  { l.log(LevelInfo, "info", msg, kvs...) }
func (l *StdLogger) Warnw(msg string, kvs ...any)  { l.log(LevelWarn, "warn", msg, kvs...) }
func (l *StdLogger) Errorw(msg string, kvs ...any) { l.log(LevelError, "error", msg, kvs...) }
func (l *StdLogger) Fatalw(msg string, kvs ...any) { l.log(LevelFatal, "fatal", msg, kvs...) }

// cloneWithContext returns a copy of the logger with merged context.
func (l *StdLogger) cloneWithContext(extra map[string]any) *StdLogger {
	ctx := make(map[string]any, len(l.context)+len(extra))
	maps.Copy(ctx, l.context)
	maps.Copy(ctx, extra)
	return &StdLogger{context: ctx, minLevel: l.minLevel}
}

// With adds key-value pairs to the logger's context.
func (l *StdLogger) With(kvs ...any) Logger {
	extra := make(map[string]any, len(kvs)/2)
	eachPair(kvs, func(k string, v any) { extra[k] = v })
	return l.cloneWithContext(extra)
}

// WithNodeID returns a logger with a node ID added to the context.
func (l *StdLogger) WithNodeID(id types.NodeID) Logger {
	return l.cloneWithContext(map[string]any{"node": int(id)})
}

// WithRound returns a logger with a round identifier added to the context.
func (l *StdLogger) WithRound(roundID string) Logger {
	return l.cloneWithContext(map[string]any{"round": roundID})
}

// WithComponent returns a logger with a component name added to the context.
func (l *StdLogger) WithComponent(name string) Logger {
	return l.cloneWithContext(map[string]any{"component": name})
}
