package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jathurchan/ralock/logger"
	"github.com/jathurchan/ralock/mutex"
	"github.com/jathurchan/ralock/types"
)

const (
	// DefaultRefreshInterval is how often the peer list is rebuilt.
	DefaultRefreshInterval = 2 * time.Second

	// DefaultProbeTimeout bounds the liveness probe of one peer.
	DefaultProbeTimeout = time.Second
)

// PeerConn is a peer channel that owns a connection.
type PeerConn interface {
	mutex.PeerChannel
	io.Closer
}

// Dialer opens a channel to the peer service listening on addr.
type Dialer func(addr string) (PeerConn, error)

// PeerListUpdater receives each rebuilt peer list. *mutex.Coordinator
// satisfies it.
type PeerListUpdater interface {
	UpdatePeerList(peers []mutex.Peer)
}

// RefresherOptions configures a Refresher.
type RefresherOptions struct {
	Interval     time.Duration
	ProbeTimeout time.Duration
}

// Refresher keeps a node's peer list in sync with a Registry. Each pass
// lists the registry, reuses healthy channels, dials peers it has not seen,
// drops peers whose probe fails and closes channels of peers that left.
type Refresher struct {
	self     types.NodeID
	registry Registry
	dial     Dialer
	target   PeerListUpdater
	opts     RefresherOptions
	logger   logger.Logger

	mu    sync.Mutex // serializes passes and guards conns
	conns map[types.NodeID]*trackedConn
}

type trackedConn struct {
	addr string
	conn PeerConn
}

// NewRefresher creates a refresher for node self.
func NewRefresher(
	self types.NodeID,
	registry Registry,
	dial Dialer,
	target PeerListUpdater,
	log logger.Logger,
	opts RefresherOptions,
) (*Refresher, error) {
	switch {
	case registry == nil:
		return nil, errors.New("discovery: registry cannot be nil")
	case dial == nil:
		return nil, errors.New("discovery: dialer cannot be nil")
	case target == nil:
		return nil, errors.New("discovery: peer list target cannot be nil")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultRefreshInterval
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	return &Refresher{
		self:     self,
		registry: registry,
		dial:     dial,
		target:   target,
		opts:     opts,
		logger:   log.WithComponent("refresher").WithNodeID(self),
		conns:    make(map[types.NodeID]*trackedConn),
	}, nil
}

// Run refreshes immediately and then every Interval until ctx ends. Failed
// passes are logged and the previous peer list stays in place.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		if err := r.RefreshOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warnw("Peer refresh failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RefreshOnce runs a single pass and pushes the result to the target.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.registry.List(ctx)
	if err != nil {
		return fmt.Errorf("list registry: %w", err)
	}

	wanted := make(map[types.NodeID]string, len(ids))
	for _, id := range ids {
		if id == r.self {
			continue
		}
		addr, ok, err := r.registry.Lookup(ctx, id)
		if err != nil {
			return fmt.Errorf("lookup node %d: %w", id, err)
		}
		if ok {
			wanted[id] = addr
		}
	}

	for id, tc := range r.conns {
		if addr, ok := wanted[id]; !ok || addr != tc.addr {
			r.closeLocked(id, "left registry or moved")
		}
	}
	for id, addr := range wanted {
		if _, ok := r.conns[id]; ok {
			continue
		}
		conn, err := r.dial(addr)
		if err != nil {
			r.logger.Debugw("Failed to dial peer", "peer", id, "addr", addr, "error", err)
			continue
		}
		r.conns[id] = &trackedConn{addr: addr, conn: conn}
	}

	healthy := r.probeLocked(ctx)

	peers := make([]mutex.Peer, 0, len(healthy))
	for _, id := range healthy {
		peers = append(peers, mutex.Peer{ID: id, Channel: r.conns[id].conn})
	}
	r.target.UpdatePeerList(peers)
	return nil
}

// probeLocked checks every tracked peer in parallel and closes the ones
// that fail. It returns the ids that answered with their own id.
func (r *Refresher) probeLocked(ctx context.Context) []types.NodeID {
	type result struct {
		id  types.NodeID
		err error
	}
	results := make(chan result, len(r.conns))

	var wg sync.WaitGroup
	for id, tc := range r.conns {
		wg.Add(1)
		go func(id types.NodeID, conn PeerConn) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, r.opts.ProbeTimeout)
			defer cancel()

			got, err := conn.NodeID(pctx)
			if err == nil && got != id {
				err = fmt.Errorf("%w: registered as %d, reports %d", ErrIDMismatch, id, got)
			}
			results <- result{id: id, err: err}
		}(id, tc.conn)
	}
	wg.Wait()
	close(results)

	var healthy []types.NodeID
	for res := range results {
		if res.err != nil {
			r.logger.Debugw("Peer probe failed", "peer", res.id, "error", res.err)
			r.closeLocked(res.id, "probe failed")
			continue
		}
		healthy = append(healthy, res.id)
	}
	return healthy
}

func (r *Refresher) closeLocked(id types.NodeID, reason string) {
	tc, ok := r.conns[id]
	if !ok {
		return
	}
	delete(r.conns, id)
	if err := tc.conn.Close(); err != nil {
		r.logger.Debugw("Error closing peer channel", "peer", id, "error", err)
	}
	r.logger.Debugw("Dropped peer channel", "peer", id, "reason", reason)
}

// Close closes every tracked channel.
func (r *Refresher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.conns {
		r.closeLocked(id, "refresher closed")
	}
	return nil
}
