package mutex

import "time"

// Clock abstracts wall-clock time so the reply wait can be driven by tests.
type Clock interface {
	// Now returns the current local time.
	Now() time.Time

	// Since returns the time elapsed since t.
	Since(t time.Time) time.Duration

	// After waits for the duration to elapse and then sends the current time
	// on the returned channel.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a Ticker that fires every d. d must be positive.
	NewTicker(d time.Duration) Ticker

	// NewTimer returns a Timer that fires once after d.
	NewTimer(d time.Duration) Timer

	// Sleep pauses the current goroutine for at least d.
	Sleep(d time.Duration)
}

// Ticker is an interface wrapper around time.Ticker for mocking.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// Timer is an interface wrapper around time.Timer for mocking.
type Timer interface {
	Chan() <-chan time.Time
	Stop() bool
}

// standardClock implements the Clock interface using the standard Go time package.
type standardClock struct{}

// NewStandardClock returns a Clock implementation based on Go's standard time package.
func NewStandardClock() Clock {
	return &standardClock{}
}

func (sc *standardClock) Now() time.Time                         { return time.Now() }
func (sc *standardClock) Since(t time.Time) time.Duration        { return time.Since(t) }
func (sc *standardClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (sc *standardClock) Sleep(d time.Duration)                  { time.Sleep(d) }

func (sc *standardClock) NewTicker(d time.Duration) Ticker {
	return &standardTicker{ticker: time.NewTicker(d)}
}

func (sc *standardClock) NewTimer(d time.Duration) Timer {
	return &standardTimer{timer: time.NewTimer(d)}
}

type standardTicker struct {
	ticker *time.Ticker
}

func (st *standardTicker) Chan() <-chan time.Time { return st.ticker.C }
func (st *standardTicker) Stop()                  { st.ticker.Stop() }

type standardTimer struct {
	timer *time.Timer
}

func (st *standardTimer) Chan() <-chan time.Time { return st.timer.C }
func (st *standardTimer) Stop() bool             { return st.timer.Stop() }
