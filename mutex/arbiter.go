package mutex

import "github.com/jathurchan/ralock/types"

// Decision is the outcome of evaluating an incoming request against local state.
type Decision int

const (
	// DecisionGrant means a reply is sent to the requester immediately.
	DecisionGrant Decision = iota

	// DecisionDefer means the requester is recorded and answered on release.
	DecisionDefer
)

// String returns a lower-case label for logs and metrics.
func (d Decision) String() string {
	switch d {
	case DecisionGrant:
		return "grant"
	case DecisionDefer:
		return "defer"
	default:
		return "unknown"
	}
}

// Decide applies the Ricart–Agrawala permission rule. It is a pure function
// of the local state and the incoming request:
//
//  1. a RELEASED node always grants;
//  2. an older request (smaller timestamp) is granted;
//  3. on a timestamp tie the lower node id is granted;
//  4. everything else is deferred.
func Decide(
	state types.PermissionState,
	localTS types.Timestamp,
	localID types.NodeID,
	requesterID types.NodeID,
	requesterTS types.Timestamp,
) Decision {
	if !state.HasClaim() {
		return DecisionGrant
	}
	if Precedes(requesterTS, requesterID, localTS, localID) {
		return DecisionGrant
	}
	return DecisionDefer
}

// Precedes reports whether request (tsA, idA) is ordered before (tsB, idB)
// in the lexicographic (timestamp, node id) total order.
func Precedes(tsA types.Timestamp, idA types.NodeID, tsB types.Timestamp, idB types.NodeID) bool {
	if tsA != tsB {
		return tsA < tsB
	}
	return idA < idB
}
