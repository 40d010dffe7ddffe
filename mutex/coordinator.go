package mutex

import (
	"context"
	"fmt"
	"sync"

	"github.com/jathurchan/ralock/logger"
	"github.com/jathurchan/ralock/types"
)

// OutstandingRequest describes the round a node is currently running.
// It exists only while the node is REQUESTING or HELD.
type OutstandingRequest struct {
	RoundID         string
	Timestamp       types.Timestamp
	RepliesExpected int
	RepliesReceived int

	// awaiting maps each peer captured at issuance to whether it has replied.
	awaiting map[types.NodeID]bool
}

// Coordinator runs the Ricart–Agrawala state machine of one node.
//
// A single mutex guards the permission state, the outstanding request, the
// deferred set and the peer list. It is never held across an outbound call:
// every send works on a copy taken under the lock.
type Coordinator struct {
	mu sync.Mutex

	id          types.NodeID
	clock       *LogicalClock
	state       types.PermissionState
	outstanding *OutstandingRequest
	deferred    *DeferredSet
	peers       PeerList

	opts    Options
	logger  logger.Logger
	metrics Metrics
	wall    Clock
}

var _ PeerChannel = (*Coordinator)(nil)

// NewCoordinator creates a coordinator in the RELEASED state with an empty
// peer list. Peers are supplied later through UpdatePeerList.
func NewCoordinator(id types.NodeID, deps Dependencies, opts Options) (*Coordinator, error) {
	if id < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNodeID, id)
	}
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	d := deps.withDefaults()

	c := &Coordinator{
		id:       id,
		clock:    NewLogicalClock(),
		state:    types.StateReleased,
		deferred: NewDeferredSet(),
		opts:     opts,
		logger:   d.Logger.WithComponent("coordinator").WithNodeID(id),
		metrics:  d.Metrics,
		wall:     d.Clock,
	}
	c.metrics.SetState(c.state)
	c.metrics.SetPeerCount(0)
	return c, nil
}

// ID returns the local node id.
func (c *Coordinator) ID() types.NodeID { return c.id }

// State returns the current permission state.
func (c *Coordinator) State() types.PermissionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Clock returns the current Lamport time.
func (c *Coordinator) Clock() types.Timestamp {
	return c.clock.Now()
}

// Deferred returns the ids of the peers currently deferred, in ascending order.
func (c *Coordinator) Deferred() []types.NodeID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deferred.IDs()
}

// Peers returns the current peer list snapshot.
func (c *Coordinator) Peers() PeerList {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peers
}

// Outstanding returns a copy of the current round, if any.
func (c *Coordinator) Outstanding() (OutstandingRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outstanding == nil {
		return OutstandingRequest{}, false
	}
	out := *c.outstanding
	out.awaiting = nil
	return out, true
}

// UpdatePeerList replaces the peer list. A round already in flight keeps the
// expected set it captured at issuance.
func (c *Coordinator) UpdatePeerList(peers []Peer) {
	next := NewPeerList(c.id, peers)

	c.mu.Lock()
	changed := !c.peers.sameMembers(next)
	c.peers = next
	c.mu.Unlock()

	c.metrics.SetPeerCount(next.Len())
	if changed {
		c.logger.Infow("Peer list updated", "peers", next.IDs())
	} else {
		c.logger.Debugw("Peer list refreshed", "peers", next.IDs())
	}
}

// Request handles a permission request from a peer.
func (c *Coordinator) Request(ctx context.Context, requesterID types.NodeID, ts types.Timestamp) (bool, error) {
	if requesterID == c.id {
		return false, fmt.Errorf("%w: request from %d", ErrSelfMessage, requesterID)
	}

	c.mu.Lock()
	now := c.clock.Observe(ts)
	var localTS types.Timestamp
	if c.outstanding != nil {
		localTS = c.outstanding.Timestamp
	}
	state := c.state
	decision := Decide(state, localTS, c.id, requesterID, ts)
	if decision == DecisionDefer {
		c.deferred.Add(requesterID, ts)
	}
	c.mu.Unlock()

	c.metrics.SetLogicalClock(now)
	c.metrics.ObserveRequestDecision(decision)
	c.logger.Infow("Received request",
		"from", requesterID, "request_ts", ts, "clock", now, "state", state)

	if decision == DecisionDefer {
		c.logger.Infow("Deferred request", "from", requesterID, "request_ts", ts, "local_ts", localTS)
		return false, nil
	}

	c.logger.Infow("Granting permission", "to", requesterID)
	c.sendReply(ctx, requesterID)
	return true, nil
}

// Reply handles a grant from a peer. Replies that do not belong to the
// current round are ignored.
func (c *Coordinator) Reply(ctx context.Context, replierID, requesterID types.NodeID) error {
	c.mu.Lock()
	reason, received, expected := c.countReplyLocked(replierID, requesterID)
	var roundID string
	if c.outstanding != nil {
		roundID = c.outstanding.RoundID
	}
	c.mu.Unlock()

	if reason != "" {
		c.metrics.ObserveStaleReply()
		c.logger.Debugw("Ignoring stale reply", "from", replierID, "requester", requesterID, "reason", reason)
		return nil
	}
	c.logger.WithRound(roundID).Infow("Received reply",
		"from", replierID, "received", received, "expected", expected, "clock", c.clock.Now())
	return nil
}

// countReplyLocked applies a reply to the current round and returns an empty
// reason when it was counted.
func (c *Coordinator) countReplyLocked(replierID, requesterID types.NodeID) (reason string, received, expected int) {
	out := c.outstanding
	switch {
	case requesterID != c.id:
		return "addressed to another node", 0, 0
	case c.state != types.StateRequesting || out == nil:
		return "no round awaiting replies", 0, 0
	}
	replied, ok := out.awaiting[replierID]
	switch {
	case !ok:
		return "replier not part of round", out.RepliesReceived, out.RepliesExpected
	case replied:
		return "duplicate reply", out.RepliesReceived, out.RepliesExpected
	}
	out.awaiting[replierID] = true
	out.RepliesReceived++
	return "", out.RepliesReceived, out.RepliesExpected
}

// Release handles a release announcement from a peer and answers every
// deferred request that no longer loses to a local claim. While this node
// still holds a claim it may send fewer replies than there are deferred
// entries.
func (c *Coordinator) Release(ctx context.Context, releaserID types.NodeID) error {
	c.mu.Lock()
	granted, kept := c.takeGrantableLocked()
	c.mu.Unlock()

	c.logger.Infow("Received release",
		"from", releaserID, "clock", c.clock.Now(), "flushing", len(granted), "still_deferred", kept)
	c.flush(ctx, granted)
	return nil
}

// NodeID returns the local node id.
func (c *Coordinator) NodeID(context.Context) (types.NodeID, error) {
	return c.id, nil
}

// IsAlive always reports true for a running coordinator.
func (c *Coordinator) IsAlive(context.Context) (bool, error) {
	return true, nil
}

// takeGrantableLocked drains the deferred set, re-applying the permission
// rule to each entry. Entries that still lose to the local claim are put
// back; the rest are returned in id order. With no local claim every entry
// is returned.
func (c *Coordinator) takeGrantableLocked() (granted []types.NodeID, kept int) {
	if c.deferred.Len() == 0 {
		return nil, 0
	}
	var localTS types.Timestamp
	if c.outstanding != nil {
		localTS = c.outstanding.Timestamp
	}
	for _, req := range c.deferred.Drain() {
		if Decide(c.state, localTS, c.id, req.ID, req.Timestamp) == DecisionGrant {
			granted = append(granted, req.ID)
			continue
		}
		c.deferred.Add(req.ID, req.Timestamp)
		kept++
	}
	return granted, kept
}

// flush sends a reply to every id in granted.
func (c *Coordinator) flush(ctx context.Context, granted []types.NodeID) {
	if len(granted) == 0 {
		return
	}
	c.metrics.ObserveDeferredFlush(len(granted))
	c.logger.Infow("Flushing deferred replies", "to", granted)

	var wg sync.WaitGroup
	for _, id := range granted {
		wg.Add(1)
		go func(to types.NodeID) {
			defer wg.Done()
			c.sendReply(ctx, to)
		}(id)
	}
	wg.Wait()
}

// sendReply sends a grant to one peer. A decided grant outlives the inbound
// call that produced it, so ctx cancellation is ignored and only SendTimeout
// bounds the send. Failures are logged, never returned.
func (c *Coordinator) sendReply(ctx context.Context, to types.NodeID) {
	ch, ok := c.Peers().Lookup(to)
	if !ok {
		c.metrics.ObserveSendFailure("reply", to)
		c.logger.Warnw("Cannot reply: peer not in peer list", "to", to, "error", ErrPeerNotFound)
		return
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.SendTimeout)
	defer cancel()
	if err := ch.Reply(sctx, c.id, to); err != nil {
		c.metrics.ObserveSendFailure("reply", to)
		c.logger.Errorw("Failed to send reply", "to", to, "error", err)
	}
}
