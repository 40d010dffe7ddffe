package mutex

import "time"

const (
	// DefaultPollInterval is how often a requesting node re-checks its reply count.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultResponseTimeout bounds how long a round waits for every peer to reply
	// before it is abandoned.
	DefaultResponseTimeout = 5 * time.Second

	// DefaultSendTimeout bounds a single outbound protocol call to one peer.
	DefaultSendTimeout = 2 * time.Second
)
