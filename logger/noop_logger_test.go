package logger

import (
	"testing"

	"github.com/jathurchan/ralock/types"
)

func TestNoOpLogger(t *testing.T) {
	logger := NewNoOpLogger()

	logger.Debugw("debug message", "key", "value")
	logger.Infow("info message", "key", "value")
	logger.Warnw("warn message", "key", "value")
	logger.Errorw("error message", "key", "value")

	// NoOpLogger.Fatalw should not terminate the process
	logger.Fatalw("fatal message", "key", "value")

	chained := logger.WithNodeID(types.NodeID(1)).WithRound("r-1").WithComponent("test").With("key", "value")
	chained.Infow("chained message")

	if chained != logger {
		t.Errorf("Expected context enrichment to return the same NoOpLogger")
	}
}

func TestNoOpLogger_Hooks(t *testing.T) {
	var got []string
	l := &NoOpLogger{
		WarnwFunc: func(msg string, _ ...any) { got = append(got, "warn:"+msg) },
		ErrorwFunc: func(msg string, _ ...any) {
			got = append(got, "error:"+msg)
		},
	}

	l.Infow("ignored")
	l.Warnw("send failed")
	l.WithComponent("x").Errorw("boom")

	if len(got) != 2 || got[0] != "warn:send failed" || got[1] != "error:boom" {
		t.Errorf("Unexpected hook calls: %v", got)
	}
}
