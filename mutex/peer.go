package mutex

import (
	"context"
	"slices"

	"github.com/jathurchan/ralock/types"
)

// PeerChannel is the capability to invoke the protocol operations of one
// node. Remote implementations live in the transport package; a local
// *Coordinator satisfies it directly.
//
// Implementations must be safe for concurrent use.
type PeerChannel interface {
	// Request asks the node for permission to enter the critical section.
	// It returns true when permission was granted immediately; in that case
	// the node has also sent a Reply back to the requester.
	Request(ctx context.Context, requesterID types.NodeID, ts types.Timestamp) (bool, error)

	// Reply delivers a grant from replierID to requesterID.
	Reply(ctx context.Context, replierID, requesterID types.NodeID) error

	// Release announces that releaserID left the critical section.
	Release(ctx context.Context, releaserID types.NodeID) error

	// NodeID returns the identity of the node behind the channel.
	NodeID(ctx context.Context) (types.NodeID, error)

	// IsAlive is a liveness probe.
	IsAlive(ctx context.Context) (bool, error)
}

// Peer binds a node id to the channel used to reach it.
type Peer struct {
	ID      types.NodeID
	Channel PeerChannel
}

// PeerList is an immutable, id-ordered snapshot of known peers.
// The zero value is an empty list.
type PeerList struct {
	peers []Peer
}

// NewPeerList builds a snapshot from peers, dropping entries for self,
// entries without a channel, and duplicate ids (first one wins).
func NewPeerList(self types.NodeID, peers []Peer) PeerList {
	seen := make(map[types.NodeID]struct{}, len(peers))
	out := make([]Peer, 0, len(peers))
	for _, p := range peers {
		if p.ID == self || p.Channel == nil {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Peer) int { return int(a.ID) - int(b.ID) })
	return PeerList{peers: out}
}

// Len returns the number of peers.
func (l PeerList) Len() int { return len(l.peers) }

// All returns a copy of the peers in id order.
func (l PeerList) All() []Peer { return slices.Clone(l.peers) }

// IDs returns the peer ids in ascending order.
func (l PeerList) IDs() []types.NodeID {
	ids := make([]types.NodeID, len(l.peers))
	for i, p := range l.peers {
		ids[i] = p.ID
	}
	return ids
}

// Lookup returns the channel for id.
func (l PeerList) Lookup(id types.NodeID) (PeerChannel, bool) {
	i, found := slices.BinarySearchFunc(l.peers, id, func(p Peer, target types.NodeID) int {
		return int(p.ID) - int(target)
	})
	if !found {
		return nil, false
	}
	return l.peers[i].Channel, true
}

// sameMembers reports whether both lists name the same ids.
func (l PeerList) sameMembers(other PeerList) bool {
	return slices.Equal(l.IDs(), other.IDs())
}
