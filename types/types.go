package types

import "fmt"

// NodeID uniquely identifies a node within the cluster.
// IDs are totally ordered; the lower ID wins a timestamp tie.
type NodeID int

// String renders the ID the way it appears in registry names and logs.
func (id NodeID) String() string {
	return fmt.Sprintf("Node%d", int(id))
}

// Timestamp is a Lamport logical time value.
// It starts at 0 and only moves forward on the node that owns it.
type Timestamp int64

// PermissionState is the local position of a node in the
// request/hold/release cycle.
type PermissionState int

const (
	// StateReleased is the initial state: the node neither holds nor wants
	// the critical section, and grants every incoming request.
	StateReleased PermissionState = iota

	// StateRequesting means a request round is in flight and the node is
	// collecting replies from its peers.
	StateRequesting

	// StateHeld means the node has collected every reply and is executing
	// its critical-section workload.
	StateHeld
)

// PeerStatus describes the last known health of a remote peer.
type PeerStatus struct {
	ID    NodeID
	Alive bool
	Addr  string
}
