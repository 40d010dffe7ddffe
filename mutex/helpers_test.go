package mutex

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jathurchan/ralock/logger"
	"github.com/jathurchan/ralock/testutil"
	"github.com/jathurchan/ralock/types"
)

var errPeerDown = errors.New("peer down")

// fastOptions keeps the reply wait short so tests finish quickly.
func fastOptions() Options {
	return Options{
		PollInterval:    5 * time.Millisecond,
		ResponseTimeout: 2 * time.Second,
		SendTimeout:     500 * time.Millisecond,
	}
}

func newTestCoordinator(t *testing.T, id types.NodeID, opts Options) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(id, Dependencies{Logger: logger.NewNoOpLogger()}, opts)
	testutil.RequireNoError(t, err)
	return c
}

// replyCall records one Reply invocation seen by a fake peer.
type replyCall struct {
	Replier   types.NodeID
	Requester types.NodeID
}

// fakePeer is a scripted remote node. When grant is set, Request answers
// by calling Reply on the requester, the way a RELEASED node would.
type fakePeer struct {
	id types.NodeID

	mu        sync.Mutex
	requester PeerChannel
	grant     bool
	down      bool
	gate      chan struct{}
	requests  []types.Timestamp
	replies   []replyCall
	releases  []types.NodeID
}

func newFakePeer(id types.NodeID, requester PeerChannel, grant bool) *fakePeer {
	return &fakePeer{id: id, requester: requester, grant: grant}
}

func (p *fakePeer) setDown(down bool) {
	p.mu.Lock()
	p.down = down
	p.mu.Unlock()
}

func (p *fakePeer) Request(ctx context.Context, requesterID types.NodeID, ts types.Timestamp) (bool, error) {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	p.mu.Lock()
	p.requests = append(p.requests, ts)
	down, grant, requester := p.down, p.grant, p.requester
	p.mu.Unlock()

	if down {
		return false, errPeerDown
	}
	if grant && requester != nil {
		_ = requester.Reply(ctx, p.id, requesterID)
	}
	return grant, nil
}

func (p *fakePeer) Reply(_ context.Context, replierID, requesterID types.NodeID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.down {
		return errPeerDown
	}
	p.replies = append(p.replies, replyCall{Replier: replierID, Requester: requesterID})
	return nil
}

func (p *fakePeer) Release(_ context.Context, releaserID types.NodeID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.down {
		return errPeerDown
	}
	p.releases = append(p.releases, releaserID)
	return nil
}

func (p *fakePeer) NodeID(context.Context) (types.NodeID, error) { return p.id, nil }

func (p *fakePeer) IsAlive(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.down, nil
}

func (p *fakePeer) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *fakePeer) replyCalls() []replyCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]replyCall(nil), p.replies...)
}

func (p *fakePeer) releaseCalls() []types.NodeID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.NodeID(nil), p.releases...)
}

// gatedChannel forwards to a coordinator but holds outbound requests until
// the gate is closed, so several nodes can stamp their requests before any
// of them observes another node's timestamp.
type gatedChannel struct {
	target *Coordinator
	gate   <-chan struct{}
}

func (g gatedChannel) Request(ctx context.Context, requesterID types.NodeID, ts types.Timestamp) (bool, error) {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	return g.target.Request(ctx, requesterID, ts)
}

func (g gatedChannel) Reply(ctx context.Context, replierID, requesterID types.NodeID) error {
	return g.target.Reply(ctx, replierID, requesterID)
}

func (g gatedChannel) Release(ctx context.Context, releaserID types.NodeID) error {
	return g.target.Release(ctx, releaserID)
}

func (g gatedChannel) NodeID(ctx context.Context) (types.NodeID, error) { return g.target.NodeID(ctx) }
func (g gatedChannel) IsAlive(ctx context.Context) (bool, error)        { return g.target.IsAlive(ctx) }

// connectMesh gives every coordinator a channel to every other one.
// A nil gate connects them directly.
func connectMesh(coords []*Coordinator, gate <-chan struct{}) {
	for _, c := range coords {
		peers := make([]Peer, 0, len(coords)-1)
		for _, other := range coords {
			if other == c {
				continue
			}
			var ch PeerChannel = other
			if gate != nil {
				ch = gatedChannel{target: other, gate: gate}
			}
			peers = append(peers, Peer{ID: other.ID(), Channel: ch})
		}
		c.UpdatePeerList(peers)
	}
}

// recordingMetrics counts the calls the coordinator makes.
type recordingMetrics struct {
	noOpMetrics

	mu        sync.Mutex
	rounds    map[Outcome]int
	decisions map[Decision]int
	flushed   []int
	failures  map[string]int
	stale     int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		rounds:    make(map[Outcome]int),
		decisions: make(map[Decision]int),
		failures:  make(map[string]int),
	}
}

func (m *recordingMetrics) ObserveRound(o Outcome, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds[o]++
}

func (m *recordingMetrics) ObserveRequestDecision(d Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[d]++
}

func (m *recordingMetrics) ObserveDeferredFlush(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushed = append(m.flushed, n)
}

func (m *recordingMetrics) ObserveSendFailure(op string, _ types.NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op]++
}

func (m *recordingMetrics) ObserveStaleReply() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale++
}
