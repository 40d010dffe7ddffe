package discovery

import "errors"

var (
	// ErrInvalidAddress is returned when a node registers without an address.
	ErrInvalidAddress = errors.New("discovery: address cannot be empty")

	// ErrInvalidNodeID is returned for negative node ids.
	ErrInvalidNodeID = errors.New("discovery: invalid node id")

	// ErrIDMismatch is returned when a probed peer reports a different id
	// than the one it was registered under.
	ErrIDMismatch = errors.New("discovery: peer reported a different node id")
)
