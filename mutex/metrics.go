package mutex

import (
	"time"

	"github.com/jathurchan/ralock/types"
)

// Metrics defines an interface for recording protocol metrics.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// ObserveRound records the end of a local entry attempt.
	// Counter: ralock_rounds_total (labeled by outcome)
	// Histogram: ralock_round_duration_seconds (labeled by outcome)
	ObserveRound(outcome Outcome, duration time.Duration)

	// ObserveRequestDecision records how an inbound request was answered.
	// Counter: ralock_requests_received_total (labeled by decision)
	ObserveRequestDecision(decision Decision)

	// ObserveDeferredFlush records how many deferred replies a flush sent.
	// Histogram: ralock_deferred_flush_size
	ObserveDeferredFlush(count int)

	// ObserveSendFailure records a failed outbound call.
	// Counter: ralock_send_failures_total (labeled by op and peer)
	ObserveSendFailure(op string, peer types.NodeID)

	// ObserveStaleReply records a reply that did not match the current round.
	// Counter: ralock_stale_replies_total
	ObserveStaleReply()

	// SetState exposes the current permission state.
	// Gauge: ralock_state (labeled by state, 1 for the active one)
	SetState(state types.PermissionState)

	// SetPeerCount exposes the size of the current peer list.
	// Gauge: ralock_peers
	SetPeerCount(n int)

	// SetLogicalClock exposes the current Lamport time.
	// Gauge: ralock_logical_clock
	SetLogicalClock(ts types.Timestamp)
}

type noOpMetrics struct{}

// NewNoOpMetrics returns a Metrics implementation that records nothing.
func NewNoOpMetrics() Metrics { return noOpMetrics{} }

func (noOpMetrics) ObserveRound(Outcome, time.Duration)     {}
func (noOpMetrics) ObserveRequestDecision(Decision)         {}
func (noOpMetrics) ObserveDeferredFlush(int)                {}
func (noOpMetrics) ObserveSendFailure(string, types.NodeID) {}
func (noOpMetrics) ObserveStaleReply()                      {}
func (noOpMetrics) SetState(types.PermissionState)          {}
func (noOpMetrics) SetPeerCount(int)                        {}
func (noOpMetrics) SetLogicalClock(types.Timestamp)         {}
