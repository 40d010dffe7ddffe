package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jathurchan/ralock/logger"
	"github.com/jathurchan/ralock/mutex"
	"github.com/jathurchan/ralock/testutil"
	"github.com/jathurchan/ralock/types"
)

// recordingHandler is a mutex.PeerChannel that records what it received.
type recordingHandler struct {
	id    types.NodeID
	grant bool
	block chan struct{}

	mu       sync.Mutex
	requests []string
	replies  []string
	releases []types.NodeID
}

func (h *recordingHandler) Request(ctx context.Context, requesterID types.NodeID, ts types.Timestamp) (bool, error) {
	if requesterID == h.id {
		return false, fmt.Errorf("%w: %d", mutex.ErrSelfMessage, requesterID)
	}
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, fmt.Sprintf("%d@%d", requesterID, ts))
	return h.grant, nil
}

func (h *recordingHandler) Reply(_ context.Context, replierID, requesterID types.NodeID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.replies = append(h.replies, fmt.Sprintf("%d->%d", replierID, requesterID))
	return nil
}

func (h *recordingHandler) Release(_ context.Context, releaserID types.NodeID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releases = append(h.releases, releaserID)
	return nil
}

func (h *recordingHandler) NodeID(context.Context) (types.NodeID, error) { return h.id, nil }
func (h *recordingHandler) IsAlive(context.Context) (bool, error)        { return true, nil }

func startServer(t *testing.T, handler mutex.PeerChannel, opts ServerOptions) *Server {
	t.Helper()
	s, err := NewServer(handler, "127.0.0.1:0", logger.NewNoOpLogger(), opts)
	testutil.RequireNoError(t, err)
	testutil.RequireNoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func dialServer(t *testing.T, s *Server) *Client {
	t.Helper()
	c, err := Dial(s.Addr(), logger.NewNoOpLogger(), ClientOptions{CallTimeout: 2 * time.Second})
	testutil.RequireNoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestServerClient_RoundTrip(t *testing.T) {
	h := &recordingHandler{id: 4, grant: true}
	s := startServer(t, h, ServerOptions{})
	c := dialServer(t, s)
	ctx := context.Background()

	granted, err := c.Request(ctx, 1, 17)
	testutil.RequireNoError(t, err)
	testutil.AssertTrue(t, granted)

	testutil.RequireNoError(t, c.Reply(ctx, 1, 4))
	testutil.RequireNoError(t, c.Release(ctx, 1))

	id, err := c.NodeID(ctx)
	testutil.RequireNoError(t, err)
	testutil.AssertEqual(t, types.NodeID(4), id)

	alive, err := c.IsAlive(ctx)
	testutil.RequireNoError(t, err)
	testutil.AssertTrue(t, alive)

	h.mu.Lock()
	defer h.mu.Unlock()
	testutil.AssertEqual(t, []string{"1@17"}, h.requests)
	testutil.AssertEqual(t, []string{"1->4"}, h.replies)
	testutil.AssertEqual(t, []types.NodeID{1}, h.releases)
}

func TestServerClient_DeferredRequest(t *testing.T) {
	s := startServer(t, &recordingHandler{id: 2, grant: false}, ServerOptions{})
	c := dialServer(t, s)

	granted, err := c.Request(context.Background(), 1, 3)
	testutil.RequireNoError(t, err)
	testutil.AssertFalse(t, granted)
}

func TestServerClient_HandlerRejection(t *testing.T) {
	s := startServer(t, &recordingHandler{id: 2}, ServerOptions{})
	c := dialServer(t, s)

	_, err := c.Request(context.Background(), 2, 3)
	testutil.AssertErrorIs(t, err, ErrInvalidArgument)
}

func TestServerClient_CallTimeout(t *testing.T) {
	block := make(chan struct{})
	s := startServer(t, &recordingHandler{id: 2, block: block}, ServerOptions{})
	defer close(block)

	c, err := Dial(s.Addr(), logger.NewNoOpLogger(), ClientOptions{CallTimeout: 50 * time.Millisecond})
	testutil.RequireNoError(t, err)
	defer c.Close()

	_, err = c.Request(context.Background(), 1, 1)
	testutil.AssertErrorIs(t, err, ErrTimeout)
}

func TestServer_RateLimit(t *testing.T) {
	s := startServer(t, &recordingHandler{id: 2}, ServerOptions{RateLimit: 1, RateBurst: 1, RateWindow: time.Hour})
	c := dialServer(t, s)
	ctx := context.Background()

	_, err := c.IsAlive(ctx)
	testutil.RequireNoError(t, err)
	_, err = c.IsAlive(ctx)
	testutil.AssertErrorIs(t, err, ErrRateLimited)
}

func TestServer_Lifecycle(t *testing.T) {
	s, err := NewServer(&recordingHandler{id: 1}, "127.0.0.1:0", logger.NewNoOpLogger(), ServerOptions{})
	testutil.RequireNoError(t, err)

	testutil.RequireNoError(t, s.Start())
	testutil.AssertErrorIs(t, s.Start(), ErrAlreadyStarted)
	testutil.AssertNotEqual(t, "127.0.0.1:0", s.Addr(), "Addr reports the bound port")

	c := dialServer(t, s)
	_, err = c.IsAlive(context.Background())
	testutil.RequireNoError(t, err)

	testutil.RequireNoError(t, s.Stop())
	testutil.AssertTrue(t, s.ShuttingDown())
	testutil.AssertErrorIs(t, s.Stop(), ErrShuttingDown)
	testutil.AssertErrorIs(t, s.Start(), ErrShuttingDown)

	_, err = c.IsAlive(context.Background())
	testutil.AssertError(t, err, "calls fail once the server stopped")
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(nil, "127.0.0.1:0", nil, ServerOptions{})
	testutil.AssertError(t, err)

	_, err = NewServer(&recordingHandler{}, "", nil, ServerOptions{})
	testutil.AssertError(t, err)
}

func TestClient_Closed(t *testing.T) {
	s := startServer(t, &recordingHandler{id: 2}, ServerOptions{})
	c := dialServer(t, s)

	testutil.RequireNoError(t, c.Close())
	testutil.RequireNoError(t, c.Close())
	_, err := c.IsAlive(context.Background())
	testutil.AssertErrorIs(t, err, ErrClientClosed)
}

func TestClient_Unreachable(t *testing.T) {
	s, err := NewServer(&recordingHandler{id: 1}, "127.0.0.1:0", nil, ServerOptions{})
	testutil.RequireNoError(t, err)
	testutil.RequireNoError(t, s.Start())
	addr := s.Addr()
	testutil.RequireNoError(t, s.Stop())

	c, err := Dial(addr, nil, ClientOptions{CallTimeout: 500 * time.Millisecond})
	testutil.RequireNoError(t, err)
	defer c.Close()

	_, err = c.NodeID(context.Background())
	testutil.AssertError(t, err)
}

// Two coordinators talking over gRPC take turns in the critical section.
func TestCoordinatorsOverGRPC(t *testing.T) {
	opts := mutex.Options{
		PollInterval:    5 * time.Millisecond,
		ResponseTimeout: 5 * time.Second,
		SendTimeout:     time.Second,
	}

	coords := make([]*mutex.Coordinator, 2)
	servers := make([]*Server, 2)
	for i := range coords {
		c, err := mutex.NewCoordinator(types.NodeID(i), mutex.Dependencies{}, opts)
		testutil.RequireNoError(t, err)
		coords[i] = c
		servers[i] = startServer(t, c, ServerOptions{})
	}
	for i, c := range coords {
		other := 1 - i
		client := dialServer(t, servers[other])
		c.UpdatePeerList([]mutex.Peer{{ID: types.NodeID(other), Channel: client}})
	}

	var holders, violations atomic.Int32
	var wg sync.WaitGroup
	for _, c := range coords {
		wg.Add(1)
		go func(c *mutex.Coordinator) {
			defer wg.Done()
			for range 3 {
				outcome := c.EnterCriticalSection(context.Background(), func() {
					if holders.Add(1) > 1 {
						violations.Add(1)
					}
					time.Sleep(5 * time.Millisecond)
					holders.Add(-1)
				})
				if outcome != mutex.OutcomeEntered {
					t.Errorf("node %d: %v", c.ID(), outcome)
				}
			}
		}(c)
	}
	wg.Wait()

	testutil.AssertEqual(t, int32(0), violations.Load())
}
