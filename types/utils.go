package types

import "slices"

// String returns the upper-case protocol name of the state.
func (s PermissionState) String() string {
	switch s {
	case StateReleased:
		return "RELEASED"
	case StateRequesting:
		return "REQUESTING"
	case StateHeld:
		return "HELD"
	default:
		return "UNKNOWN"
	}
}

// IsValid checks if the state is one of the three protocol states.
func (s PermissionState) IsValid() bool {
	return s == StateReleased || s == StateRequesting || s == StateHeld
}

// HasClaim reports whether the node has an outstanding claim on the
// critical section, i.e. it is requesting or holding it.
func (s PermissionState) HasClaim() bool {
	return s == StateRequesting || s == StateHeld
}

// transitions maps the valid state transitions of the entry/exit cycle.
// REQUESTING may fall back to RELEASED when a round is aborted.
var transitions = map[PermissionState][]PermissionState{
	StateReleased:   {StateRequesting},
	StateRequesting: {StateHeld, StateReleased},
	StateHeld:       {StateReleased},
}

// CanTransitionTo checks if a transition from the current state to the target state is valid.
func (s PermissionState) CanTransitionTo(target PermissionState) bool {
	validTargets, exists := transitions[s]
	if !exists {
		return false
	}

	return slices.Contains(validTargets, target)
}
