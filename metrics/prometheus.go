// Package metrics exports coordinator metrics to Prometheus.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jathurchan/ralock/mutex"
	"github.com/jathurchan/ralock/types"
)

const namespace = "ralock"

// Prometheus implements mutex.Metrics with Prometheus collectors.
type Prometheus struct {
	rounds        *prometheus.CounterVec   // outcome
	roundDuration *prometheus.HistogramVec // outcome
	requests      *prometheus.CounterVec   // decision
	deferredFlush prometheus.Histogram
	sendFailures  *prometheus.CounterVec // op, peer
	staleReplies  prometheus.Counter
	state         *prometheus.GaugeVec // state
	peers         prometheus.Gauge
	clock         prometheus.Gauge
}

var _ mutex.Metrics = (*Prometheus)(nil)

// New creates the collectors and registers them with reg. Pass a registerer
// wrapped by ForNode when several coordinators share one registry.
func New(reg prometheus.Registerer) (*Prometheus, error) {
	m := &Prometheus{
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Critical section entry attempts by outcome",
		}, []string{"outcome"}),
		roundDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Time from request to release, or to giving up",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}, []string{"outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_received_total",
			Help:      "Inbound permission requests by decision",
		}, []string{"decision"}),
		deferredFlush: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deferred_flush_size",
			Help:      "Replies sent per deferred flush",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Failed outbound calls by operation and peer",
		}, []string{"op", "peer"}),
		staleReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_replies_total",
			Help:      "Replies ignored because they did not match the current round",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Current permission state, 1 for the active state",
		}, []string{"state"}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers",
			Help:      "Size of the current peer list",
		}),
		clock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "logical_clock",
			Help:      "Current Lamport time",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.rounds, m.roundDuration, m.requests, m.deferredFlush,
		m.sendFailures, m.staleReplies, m.state, m.peers, m.clock,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	// Pre-create label values so every series is exported from the start.
	for _, o := range mutex.Outcomes {
		m.rounds.WithLabelValues(o.String())
	}
	for _, d := range []mutex.Decision{mutex.DecisionGrant, mutex.DecisionDefer} {
		m.requests.WithLabelValues(d.String())
	}
	m.SetState(types.StateReleased)
	return m, nil
}

// ForNode returns a registerer that adds a node label to every metric.
func ForNode(reg prometheus.Registerer, id types.NodeID) prometheus.Registerer {
	return prometheus.WrapRegistererWith(prometheus.Labels{"node": strconv.Itoa(int(id))}, reg)
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Prometheus) ObserveRound(outcome mutex.Outcome, d time.Duration) {
	m.rounds.WithLabelValues(outcome.String()).Inc()
	if outcome != mutex.OutcomeRejected {
		m.roundDuration.WithLabelValues(outcome.String()).Observe(d.Seconds())
	}
}

func (m *Prometheus) ObserveRequestDecision(d mutex.Decision) {
	m.requests.WithLabelValues(d.String()).Inc()
}

func (m *Prometheus) ObserveDeferredFlush(n int) {
	m.deferredFlush.Observe(float64(n))
}

func (m *Prometheus) ObserveSendFailure(op string, peer types.NodeID) {
	m.sendFailures.WithLabelValues(op, strconv.Itoa(int(peer))).Inc()
}

func (m *Prometheus) ObserveStaleReply() {
	m.staleReplies.Inc()
}

func (m *Prometheus) SetState(state types.PermissionState) {
	for _, s := range []types.PermissionState{types.StateReleased, types.StateRequesting, types.StateHeld} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}
}

func (m *Prometheus) SetPeerCount(n int) {
	m.peers.Set(float64(n))
}

func (m *Prometheus) SetLogicalClock(ts types.Timestamp) {
	m.clock.Set(float64(ts))
}
