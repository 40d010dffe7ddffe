package mutex

import "errors"

var (
	// ErrInvalidOptions is returned when coordinator options fail validation.
	ErrInvalidOptions = errors.New("mutex: invalid options")

	// ErrMissingDependencies is returned when a required dependency is absent.
	ErrMissingDependencies = errors.New("mutex: missing required dependencies")

	// ErrInvalidNodeID is returned when a node identifier is negative.
	ErrInvalidNodeID = errors.New("mutex: invalid node id")

	// ErrSelfMessage is returned when a node receives a protocol message
	// claiming to originate from itself.
	ErrSelfMessage = errors.New("mutex: message originates from the local node")

	// ErrPeerNotFound indicates that a peer id is not present in the current peer list.
	ErrPeerNotFound = errors.New("mutex: peer not found")
)
