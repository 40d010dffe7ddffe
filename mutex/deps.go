package mutex

import (
	"fmt"

	"github.com/jathurchan/ralock/logger"
)

// Dependencies bundles the collaborators of a Coordinator.
type Dependencies struct {
	// Logger provides structured logging. Defaults to a no-op logger.
	Logger logger.Logger

	// Metrics records protocol metrics. Defaults to no-op metrics.
	Metrics Metrics

	// Clock drives the reply wait. Defaults to the standard clock.
	Clock Clock
}

// withDefaults returns a copy with nil optional dependencies replaced.
func (d *Dependencies) withDefaults() Dependencies {
	out := *d
	if out.Logger == nil {
		out.Logger = logger.NewNoOpLogger()
	}
	if out.Metrics == nil {
		out.Metrics = NewNoOpMetrics()
	}
	if out.Clock == nil {
		out.Clock = NewStandardClock()
	}
	return out
}

// Validate checks the dependencies struct itself. Every field is optional.
func (d *Dependencies) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: dependencies struct cannot be nil", ErrMissingDependencies)
	}
	return nil
}
