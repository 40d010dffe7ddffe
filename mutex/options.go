package mutex

import (
	"fmt"
	"time"
)

// Options tunes the reply wait of a Coordinator.
// Zero fields fall back to the package defaults.
type Options struct {
	// PollInterval is how often a requesting node re-checks its reply count.
	PollInterval time.Duration

	// ResponseTimeout bounds the whole reply collection of one round.
	// When it elapses the round is abandoned and the node returns to RELEASED.
	ResponseTimeout time.Duration

	// SendTimeout bounds each outbound call to a single peer.
	SendTimeout time.Duration
}

// DefaultOptions returns the stock timing parameters.
func DefaultOptions() Options {
	return Options{
		PollInterval:    DefaultPollInterval,
		ResponseTimeout: DefaultResponseTimeout,
		SendTimeout:     DefaultSendTimeout,
	}
}

// WithDefaults fills zero fields with defaults.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.PollInterval == 0 {
		o.PollInterval = d.PollInterval
	}
	if o.ResponseTimeout == 0 {
		o.ResponseTimeout = d.ResponseTimeout
	}
	if o.SendTimeout == 0 {
		o.SendTimeout = d.SendTimeout
	}
	return o
}

// Validate checks that every duration is positive and that the poll
// interval fits inside the response timeout.
func (o Options) Validate() error {
	if o.PollInterval <= 0 {
		return fmt.Errorf("%w: PollInterval must be positive, got %v", ErrInvalidOptions, o.PollInterval)
	}
	if o.ResponseTimeout <= 0 {
		return fmt.Errorf("%w: ResponseTimeout must be positive, got %v", ErrInvalidOptions, o.ResponseTimeout)
	}
	if o.SendTimeout <= 0 {
		return fmt.Errorf("%w: SendTimeout must be positive, got %v", ErrInvalidOptions, o.SendTimeout)
	}
	if o.PollInterval > o.ResponseTimeout {
		return fmt.Errorf("%w: PollInterval (%v) exceeds ResponseTimeout (%v)",
			ErrInvalidOptions, o.PollInterval, o.ResponseTimeout)
	}
	return nil
}
