package discovery

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/jathurchan/ralock/logger"
	"github.com/jathurchan/ralock/types"
)

// Registry maps node ids to the addresses their peer service listens on.
// Implementations must be safe for concurrent use.
type Registry interface {
	// Register binds id to addr, replacing any previous binding.
	Register(ctx context.Context, id types.NodeID, addr string) error

	// Unregister removes id. Removing an unknown id is not an error.
	Unregister(ctx context.Context, id types.NodeID) error

	// Lookup returns the address bound to id, or ok=false if none.
	Lookup(ctx context.Context, id types.NodeID) (addr string, ok bool, err error)

	// List returns every registered id in ascending order.
	List(ctx context.Context) ([]types.NodeID, error)

	// IsRegistered reports whether id has a binding.
	IsRegistered(ctx context.Context, id types.NodeID) (bool, error)
}

// MemoryRegistry is an in-process Registry.
type MemoryRegistry struct {
	mu     sync.RWMutex
	nodes  map[types.NodeID]string
	logger logger.Logger
}

var _ Registry = (*MemoryRegistry)(nil)

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry(log logger.Logger) *MemoryRegistry {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &MemoryRegistry{
		nodes:  make(map[types.NodeID]string),
		logger: log.WithComponent("registry"),
	}
}

func (r *MemoryRegistry) Register(_ context.Context, id types.NodeID, addr string) error {
	if err := validateBinding(id, addr); err != nil {
		return err
	}
	r.mu.Lock()
	prev, existed := r.nodes[id]
	r.nodes[id] = addr
	r.mu.Unlock()

	if existed && prev != addr {
		r.logger.Infow("Node re-registered", "node", id, "addr", addr, "previous_addr", prev)
	} else {
		r.logger.Infow("Node registered", "node", id, "addr", addr)
	}
	return nil
}

func (r *MemoryRegistry) Unregister(_ context.Context, id types.NodeID) error {
	r.mu.Lock()
	_, existed := r.nodes[id]
	delete(r.nodes, id)
	r.mu.Unlock()

	if existed {
		r.logger.Infow("Node unregistered", "node", id)
	}
	return nil
}

func (r *MemoryRegistry) Lookup(_ context.Context, id types.NodeID) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.nodes[id]
	return addr, ok, nil
}

func (r *MemoryRegistry) List(context.Context) ([]types.NodeID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.nodes)), nil
}

func (r *MemoryRegistry) IsRegistered(_ context.Context, id types.NodeID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nodes[id]
	return ok, nil
}

func validateBinding(id types.NodeID, addr string) error {
	if id < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidNodeID, id)
	}
	if addr == "" {
		return ErrInvalidAddress
	}
	return nil
}
