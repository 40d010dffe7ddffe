// Package sim generates critical section load against coordinators and
// checks that no two nodes ever hold the section at the same time.
package sim

import (
	"context"
	"errors"

	"github.com/jathurchan/ralock/logger"
	"github.com/jathurchan/ralock/mutex"
	"github.com/jathurchan/ralock/types"
)

// ErrNoCoordinator is returned by Run when the driver has nothing to drive.
var ErrNoCoordinator = errors.New("sim: coordinator cannot be nil")

// Node is the part of a coordinator a Driver uses. *mutex.Coordinator
// satisfies it.
type Node interface {
	ID() types.NodeID
	EnterCriticalSection(ctx context.Context, work mutex.Workload) mutex.Outcome
}

// Driver repeatedly waits a random delay and then runs one entry attempt
// whose workload sleeps a random work time. Nil fields other than
// Coordinator fall back to defaults.
type Driver struct {
	Coordinator Node
	Options     Options
	Rand        Rand
	Clock       mutex.Clock
	Monitor     *Monitor
	Report      *Report
	Logger      logger.Logger
}

// Run drives the coordinator until ctx ends and returns ctx's error. The
// stop signal is honored during the delay and between attempts; a workload
// that already started runs to completion.
func (d *Driver) Run(ctx context.Context) error {
	if d.Coordinator == nil {
		return ErrNoCoordinator
	}
	opts := d.Options.WithDefaults()
	if err := opts.Validate(); err != nil {
		return err
	}
	rnd := d.Rand
	if rnd == nil {
		rnd = NewRand()
	}
	clock := d.Clock
	if clock == nil {
		clock = mutex.NewStandardClock()
	}
	id := d.Coordinator.ID()
	log := d.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithComponent("driver").WithNodeID(id)

	log.Infow("Simulation started", "options", opts)
	defer log.Infow("Simulation stopped")

	for {
		delay := between(rnd, opts.MinRequestDelay, opts.MaxRequestDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(delay):
		}

		work := between(rnd, opts.MinWorkTime, opts.MaxWorkTime)
		outcome := d.Coordinator.EnterCriticalSection(ctx, func() {
			d.Monitor.Enter(id)
			log.Infow("Working in critical section", "duration", work)
			clock.Sleep(work)
			d.Monitor.Exit(id)
		})
		d.Report.Record(id, outcome)
		log.Debugw("Attempt finished", "outcome", outcome)

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}
