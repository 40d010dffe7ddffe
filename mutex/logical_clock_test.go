package mutex

import (
	"sync"
	"testing"

	"github.com/jathurchan/ralock/testutil"
	"github.com/jathurchan/ralock/types"
)

func TestLogicalClock_Tick(t *testing.T) {
	c := NewLogicalClock()
	testutil.AssertEqual(t, types.Timestamp(0), c.Now())

	prev := c.Now()
	for range 5 {
		next := c.Tick()
		testutil.AssertTrue(t, next > prev, "tick must strictly increase: %d -> %d", prev, next)
		prev = next
	}
	testutil.AssertEqual(t, types.Timestamp(5), c.Now())
}

func TestLogicalClock_Observe(t *testing.T) {
	tests := []struct {
		name   string
		start  int
		remote types.Timestamp
		want   types.Timestamp
	}{
		{"remote ahead", 2, 10, 11},
		{"remote behind", 7, 3, 8},
		{"remote equal", 4, 4, 5},
		{"negative remote", 1, -5, 2},
		{"fresh clock", 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewLogicalClock()
			for range tt.start {
				c.Tick()
			}
			got := c.Observe(tt.remote)
			testutil.AssertEqual(t, tt.want, got)
			testutil.AssertEqual(t, tt.want, c.Now())
		})
	}
}

func TestLogicalClock_Concurrent(t *testing.T) {
	c := NewLogicalClock()

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			prev := types.Timestamp(0)
			for i := range perWorker {
				var got types.Timestamp
				if i%2 == 0 {
					got = c.Tick()
				} else {
					got = c.Observe(types.Timestamp(w))
				}
				if got <= prev {
					t.Errorf("worker %d saw non-increasing time %d after %d", w, got, prev)
					return
				}
				prev = got
			}
		}(w)
	}
	wg.Wait()

	testutil.AssertTrue(t, c.Now() >= workers*perWorker, "every event advances the clock, got %d", c.Now())
}
