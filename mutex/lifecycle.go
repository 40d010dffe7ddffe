package mutex

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jathurchan/ralock/logger"
	"github.com/jathurchan/ralock/types"
)

// Outcome reports how a local entry attempt ended.
type Outcome int

const (
	// OutcomeEntered means the node held the critical section, ran the
	// workload and released it.
	OutcomeEntered Outcome = iota

	// OutcomeRejected means a round was already in progress; nothing was sent.
	OutcomeRejected

	// OutcomeTimedOut means not every peer replied before the response
	// timeout; the round was abandoned.
	OutcomeTimedOut

	// OutcomeCanceled means the context ended while waiting for replies.
	OutcomeCanceled
)

// String returns a lower-case label for logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeEntered:
		return "entered"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Outcomes lists every outcome in declaration order.
var Outcomes = []Outcome{OutcomeEntered, OutcomeRejected, OutcomeTimedOut, OutcomeCanceled}

// Workload is the bounded operation executed while the critical section is held.
type Workload func()

// EnterCriticalSection runs one full round: broadcast a request, wait for
// every peer to reply, run work while HELD, then release.
//
// A call made while a round is already in progress is rejected without side
// effects. A round that does not collect every reply within the response
// timeout, or whose context ends first, is abandoned and the node returns to
// RELEASED; the caller may retry. Once HELD, work always runs to completion.
func (c *Coordinator) EnterCriticalSection(ctx context.Context, work Workload) Outcome {
	start := c.wall.Now()

	round, peers, ok := c.beginRound()
	if !ok {
		c.logger.Infow("Already requesting or in critical section")
		c.metrics.ObserveRound(OutcomeRejected, 0)
		return OutcomeRejected
	}
	rlog := c.logger.WithRound(round.RoundID)
	rlog.Infow("Requesting critical section", "request_ts", round.Timestamp, "peers", peers.IDs())

	deadline := c.wall.NewTimer(c.opts.ResponseTimeout)
	defer deadline.Stop()

	c.broadcastRequest(ctx, round.Timestamp, peers, rlog)

	outcome := c.awaitReplies(ctx, round.RoundID, deadline)
	if outcome != OutcomeEntered {
		c.abortRound(context.WithoutCancel(ctx), round.RoundID, outcome, rlog)
		c.metrics.ObserveRound(outcome, c.wall.Since(start))
		return outcome
	}

	rlog.Infow("*** ENTERED CRITICAL SECTION ***", "clock", c.clock.Now())
	if work != nil {
		work()
	}
	c.exitCriticalSection(context.WithoutCancel(ctx), rlog)

	c.metrics.ObserveRound(OutcomeEntered, c.wall.Since(start))
	return OutcomeEntered
}

// beginRound moves RELEASED to REQUESTING and stamps a new request.
func (c *Coordinator) beginRound() (OutstandingRequest, PeerList, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.HasClaim() {
		return OutstandingRequest{}, PeerList{}, false
	}

	if n := c.deferred.Len(); n > 0 {
		c.logger.Warnw("Clearing stale deferred entries", "count", n, "peers", c.deferred.IDs())
		c.deferred.Clear()
	}

	peers := c.peers
	awaiting := make(map[types.NodeID]bool, peers.Len())
	for _, id := range peers.IDs() {
		awaiting[id] = false
	}
	c.outstanding = &OutstandingRequest{
		RoundID:         uuid.NewString(),
		Timestamp:       c.clock.Tick(),
		RepliesExpected: peers.Len(),
		awaiting:        awaiting,
	}
	c.setStateLocked(types.StateRequesting)

	return *c.outstanding, peers, true
}

// broadcastRequest sends the request to every peer in parallel and returns
// once every send finished or timed out. A failed send is a peer that will
// not reply this round.
func (c *Coordinator) broadcastRequest(ctx context.Context, ts types.Timestamp, peers PeerList, rlog logger.Logger) {
	c.fanOut(ctx, peers, func(sctx context.Context, p Peer) {
		granted, err := p.Channel.Request(sctx, c.id, ts)
		if err != nil {
			c.metrics.ObserveSendFailure("request", p.ID)
			rlog.Errorw("Failed to send request", "to", p.ID, "error", err)
			return
		}
		rlog.Debugw("Request delivered", "to", p.ID, "granted", granted)
	})
}

// awaitReplies polls the reply count every PollInterval until the round is
// complete, the deadline fires, or ctx ends.
func (c *Coordinator) awaitReplies(ctx context.Context, roundID string, deadline Timer) Outcome {
	ticker := c.wall.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		if c.tryAcquire(roundID) {
			return OutcomeEntered
		}
		select {
		case <-ctx.Done():
			return OutcomeCanceled
		case <-deadline.Chan():
			if c.tryAcquire(roundID) {
				return OutcomeEntered
			}
			return OutcomeTimedOut
		case <-ticker.Chan():
		}
	}
}

// tryAcquire moves REQUESTING to HELD once every expected reply arrived.
func (c *Coordinator) tryAcquire(roundID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.outstanding
	if c.state != types.StateRequesting || out == nil || out.RoundID != roundID {
		return false
	}
	if out.RepliesReceived < out.RepliesExpected {
		return false
	}
	c.setStateLocked(types.StateHeld)
	return true
}

// abortRound abandons an incomplete round. A RELEASED node grants every
// request, so any request deferred during the round is answered now.
func (c *Coordinator) abortRound(ctx context.Context, roundID string, outcome Outcome, rlog logger.Logger) {
	c.mu.Lock()
	out := c.outstanding
	if out == nil || out.RoundID != roundID {
		c.mu.Unlock()
		return
	}
	received, expected := out.RepliesReceived, out.RepliesExpected
	missing := make([]types.NodeID, 0, expected-received)
	for id, replied := range out.awaiting {
		if !replied {
			missing = append(missing, id)
		}
	}
	slices.Sort(missing)
	c.outstanding = nil
	c.setStateLocked(types.StateReleased)
	granted, _ := c.takeGrantableLocked()
	c.mu.Unlock()

	rlog.Errorw("Abandoning request round",
		"reason", outcome, "received", received, "expected", expected, "missing", missing)
	c.flush(ctx, granted)
}

// exitCriticalSection moves HELD to RELEASED, announces the release to every
// peer and answers the requests deferred during the hold.
func (c *Coordinator) exitCriticalSection(ctx context.Context, rlog logger.Logger) {
	c.mu.Lock()
	c.outstanding = nil
	c.setStateLocked(types.StateReleased)
	peers := c.peers
	granted, _ := c.takeGrantableLocked()
	c.mu.Unlock()

	rlog.Infow("*** EXITED CRITICAL SECTION ***", "clock", c.clock.Now(), "deferred", len(granted))

	c.fanOut(ctx, peers, func(sctx context.Context, p Peer) {
		if err := p.Channel.Release(sctx, c.id); err != nil {
			c.metrics.ObserveSendFailure("release", p.ID)
			rlog.Errorw("Failed to send release", "to", p.ID, "error", err)
		}
	})
	c.flush(ctx, granted)
}

// fanOut runs send once per peer concurrently, each under SendTimeout.
func (c *Coordinator) fanOut(ctx context.Context, peers PeerList, send func(context.Context, Peer)) {
	var wg sync.WaitGroup
	for _, p := range peers.All() {
		wg.Add(1)
		go func(p Peer) {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, c.opts.SendTimeout)
			defer cancel()
			send(sctx, p)
		}(p)
	}
	wg.Wait()
}

// setStateLocked records a state transition. Callers hold c.mu.
func (c *Coordinator) setStateLocked(next types.PermissionState) {
	if !c.state.CanTransitionTo(next) {
		c.logger.Warnw("Unexpected state transition", "from", c.state, "to", next)
	}
	c.state = next
	c.metrics.SetState(next)
}
