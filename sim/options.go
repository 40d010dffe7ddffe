package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/jathurchan/ralock/types"
)

const (
	// MinNodes and MaxNodes bound the size of a simulated cluster.
	MinNodes = 2
	MaxNodes = 10

	DefaultMinRequestDelay = time.Second
	DefaultMaxRequestDelay = 10 * time.Second
	DefaultMinWorkTime     = 500 * time.Millisecond
	DefaultMaxWorkTime     = 3 * time.Second
)

// ErrInvalidOptions is returned when Options fail validation.
var ErrInvalidOptions = errors.New("sim: invalid options")

// ValidNodeCount reports whether n nodes is a supported cluster size.
func ValidNodeCount(n int) bool {
	return n >= MinNodes && n <= MaxNodes
}

// ValidNodeID reports whether id fits in a cluster of MaxNodes.
func ValidNodeID(id types.NodeID) bool {
	return id >= 0 && int(id) < MaxNodes
}

// Options controls the load a Driver generates. Delays and work times are
// drawn uniformly from [Min, Max).
type Options struct {
	MinRequestDelay time.Duration
	MaxRequestDelay time.Duration
	MinWorkTime     time.Duration
	MaxWorkTime     time.Duration
}

// DefaultOptions returns the default load profile.
func DefaultOptions() Options {
	return Options{
		MinRequestDelay: DefaultMinRequestDelay,
		MaxRequestDelay: DefaultMaxRequestDelay,
		MinWorkTime:     DefaultMinWorkTime,
		MaxWorkTime:     DefaultMaxWorkTime,
	}
}

// WithDefaults replaces zero fields with defaults.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.MinRequestDelay == 0 {
		o.MinRequestDelay = d.MinRequestDelay
	}
	if o.MaxRequestDelay == 0 {
		o.MaxRequestDelay = d.MaxRequestDelay
	}
	if o.MinWorkTime == 0 {
		o.MinWorkTime = d.MinWorkTime
	}
	if o.MaxWorkTime == 0 {
		o.MaxWorkTime = d.MaxWorkTime
	}
	return o
}

// Validate checks that every range is non-negative and ordered.
func (o Options) Validate() error {
	if o.MinRequestDelay < 0 || o.MaxRequestDelay < o.MinRequestDelay {
		return fmt.Errorf("%w: request delay range [%v, %v)", ErrInvalidOptions, o.MinRequestDelay, o.MaxRequestDelay)
	}
	if o.MinWorkTime < 0 || o.MaxWorkTime < o.MinWorkTime {
		return fmt.Errorf("%w: work time range [%v, %v)", ErrInvalidOptions, o.MinWorkTime, o.MaxWorkTime)
	}
	return nil
}
