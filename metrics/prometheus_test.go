package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jathurchan/ralock/mutex"
	"github.com/jathurchan/ralock/testutil"
	"github.com/jathurchan/ralock/types"
)

func newTestMetrics(t *testing.T) (*Prometheus, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	testutil.RequireNoError(t, err)
	return m, reg
}

func TestPrometheus_Counters(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ObserveRound(mutex.OutcomeEntered, 20*time.Millisecond)
	m.ObserveRound(mutex.OutcomeEntered, 30*time.Millisecond)
	m.ObserveRound(mutex.OutcomeTimedOut, time.Second)
	m.ObserveRequestDecision(mutex.DecisionDefer)
	m.ObserveSendFailure("reply", 3)
	m.ObserveStaleReply()

	testutil.AssertEqual(t, 2.0, promtest.ToFloat64(m.rounds.WithLabelValues("entered")))
	testutil.AssertEqual(t, 1.0, promtest.ToFloat64(m.rounds.WithLabelValues("timed_out")))
	testutil.AssertEqual(t, 0.0, promtest.ToFloat64(m.rounds.WithLabelValues("rejected")))
	testutil.AssertEqual(t, 1.0, promtest.ToFloat64(m.requests.WithLabelValues("defer")))
	testutil.AssertEqual(t, 0.0, promtest.ToFloat64(m.requests.WithLabelValues("grant")))
	testutil.AssertEqual(t, 1.0, promtest.ToFloat64(m.sendFailures.WithLabelValues("reply", "3")))
	testutil.AssertEqual(t, 1.0, promtest.ToFloat64(m.staleReplies))
}

func TestPrometheus_Gauges(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.SetState(types.StateHeld)
	m.SetPeerCount(4)
	m.SetLogicalClock(17)

	testutil.AssertEqual(t, 1.0, promtest.ToFloat64(m.state.WithLabelValues("HELD")))
	testutil.AssertEqual(t, 0.0, promtest.ToFloat64(m.state.WithLabelValues("RELEASED")))
	testutil.AssertEqual(t, 0.0, promtest.ToFloat64(m.state.WithLabelValues("REQUESTING")))
	testutil.AssertEqual(t, 4.0, promtest.ToFloat64(m.peers))
	testutil.AssertEqual(t, 17.0, promtest.ToFloat64(m.clock))
}

func TestPrometheus_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	testutil.RequireNoError(t, err)
	_, err = New(reg)
	testutil.AssertError(t, err)
}

func TestForNode_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(ForNode(reg, 0))
	testutil.RequireNoError(t, err)
	b, err := New(ForNode(reg, 1))
	testutil.RequireNoError(t, err)

	a.SetPeerCount(1)
	b.SetPeerCount(1)

	n, err := promtest.GatherAndCount(reg, "ralock_peers")
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, 2, n)
}

func TestPrometheus_WiredIntoCoordinator(t *testing.T) {
	m, reg := newTestMetrics(t)
	c, err := mutex.NewCoordinator(0, mutex.Dependencies{Metrics: m}, mutex.Options{})
	testutil.RequireNoError(t, err)

	outcome := c.EnterCriticalSection(context.Background(), nil)
	testutil.AssertEqual(t, mutex.OutcomeEntered, outcome)
	testutil.AssertEqual(t, 1.0, promtest.ToFloat64(m.rounds.WithLabelValues("entered")))
	testutil.AssertEqual(t, 1.0, promtest.ToFloat64(m.state.WithLabelValues("RELEASED")))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	testutil.RequireNoError(t, err)
	testutil.AssertContains(t, string(body), `ralock_rounds_total{outcome="entered"} 1`)
}
