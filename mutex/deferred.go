package mutex

import (
	"slices"

	"github.com/jathurchan/ralock/types"
)

// DeferredRequest is a request that lost priority to the local claim and
// is still waiting for a reply.
type DeferredRequest struct {
	ID        types.NodeID
	Timestamp types.Timestamp
}

// DeferredSet holds the peers whose requests are being withheld.
// It is not safe for concurrent use; the coordinator guards it with its lock.
type DeferredSet struct {
	entries map[types.NodeID]types.Timestamp
}

// NewDeferredSet returns an empty set.
func NewDeferredSet() *DeferredSet {
	return &DeferredSet{entries: make(map[types.NodeID]types.Timestamp)}
}

// Add records a deferred request. Adding the same peer again keeps a single
// entry carrying the newest timestamp.
func (s *DeferredSet) Add(id types.NodeID, ts types.Timestamp) {
	if old, ok := s.entries[id]; ok && old >= ts {
		return
	}
	s.entries[id] = ts
}

// Contains reports whether id is currently deferred.
func (s *DeferredSet) Contains(id types.NodeID) bool {
	_, ok := s.entries[id]
	return ok
}

// Len returns the number of deferred peers.
func (s *DeferredSet) Len() int {
	return len(s.entries)
}

// IDs returns the deferred peer ids in ascending order.
func (s *DeferredSet) IDs() []types.NodeID {
	ids := make([]types.NodeID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Drain removes and returns every entry, ordered by peer id.
func (s *DeferredSet) Drain() []DeferredRequest {
	out := make([]DeferredRequest, 0, len(s.entries))
	for _, id := range s.IDs() {
		out = append(out, DeferredRequest{ID: id, Timestamp: s.entries[id]})
	}
	clear(s.entries)
	return out
}

// Clear drops every entry without returning them.
func (s *DeferredSet) Clear() {
	clear(s.entries)
}
