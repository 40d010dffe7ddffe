package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jathurchan/ralock/mutex"
	"github.com/jathurchan/ralock/testutil"
	"github.com/jathurchan/ralock/types"
)

var fastLoad = Options{
	MinRequestDelay: time.Millisecond,
	MaxRequestDelay: 3 * time.Millisecond,
	MinWorkTime:     time.Millisecond,
	MaxWorkTime:     2 * time.Millisecond,
}

// stubNode enters immediately and counts attempts.
type stubNode struct {
	id       types.NodeID
	attempts atomic.Int32
}

func (s *stubNode) ID() types.NodeID { return s.id }

func (s *stubNode) EnterCriticalSection(_ context.Context, work mutex.Workload) mutex.Outcome {
	s.attempts.Add(1)
	work()
	return mutex.OutcomeEntered
}

func TestDriver_RunUntilCanceled(t *testing.T) {
	node := &stubNode{id: 3}
	mon := NewMonitor()
	rep := NewReport()
	d := &Driver{Coordinator: node, Options: fastLoad, Rand: NewSeededRand(1), Monitor: mon, Report: rep}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	testutil.Eventually(t, time.Second, time.Millisecond, func() bool {
		return node.attempts.Load() >= 3
	})
	cancel()

	select {
	case err := <-done:
		testutil.AssertErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("driver did not stop")
	}

	attempts := int(node.attempts.Load())
	testutil.AssertEqual(t, attempts, rep.Count(3, mutex.OutcomeEntered))
	testutil.AssertLen(t, mon.Entries(), attempts)
	testutil.AssertEmpty(t, mon.Violations())
}

func TestDriver_StopsDuringDelay(t *testing.T) {
	node := &stubNode{id: 0}
	d := &Driver{Coordinator: node, Options: Options{
		MinRequestDelay: time.Hour,
		MaxRequestDelay: 2 * time.Hour,
		MinWorkTime:     time.Millisecond,
		MaxWorkTime:     time.Millisecond,
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := d.Run(ctx)
	testutil.AssertErrorIs(t, err, context.DeadlineExceeded)
	testutil.AssertTrue(t, time.Since(start) < time.Second)
	testutil.AssertEqual(t, int32(0), node.attempts.Load())
}

func TestDriver_Validation(t *testing.T) {
	err := (&Driver{}).Run(context.Background())
	testutil.AssertTrue(t, errors.Is(err, ErrNoCoordinator))

	err = (&Driver{Coordinator: &stubNode{}, Options: Options{MinWorkTime: 2, MaxWorkTime: 1}}).Run(context.Background())
	testutil.AssertErrorIs(t, err, ErrInvalidOptions)
}

// Drivers on a fully connected in-process cluster never overlap.
func TestDriver_ClusterKeepsMutualExclusion(t *testing.T) {
	const nodes = 3
	opts := mutex.Options{
		PollInterval:    time.Millisecond,
		ResponseTimeout: 5 * time.Second,
		SendTimeout:     time.Second,
	}

	coords := make([]*mutex.Coordinator, nodes)
	for i := range coords {
		c, err := mutex.NewCoordinator(types.NodeID(i), mutex.Dependencies{}, opts)
		testutil.RequireNoError(t, err)
		coords[i] = c
	}
	for _, c := range coords {
		var peers []mutex.Peer
		for _, other := range coords {
			peers = append(peers, mutex.Peer{ID: other.ID(), Channel: other})
		}
		c.UpdatePeerList(peers)
	}

	mon := NewMonitor()
	rep := NewReport()
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	for i, c := range coords {
		wg.Add(1)
		go func(i int, c *mutex.Coordinator) {
			defer wg.Done()
			d := &Driver{Coordinator: c, Options: fastLoad, Rand: NewSeededRand(uint64(i)), Monitor: mon, Report: rep}
			_ = d.Run(ctx)
		}(i, c)
	}
	wg.Wait()

	testutil.AssertEmpty(t, mon.Violations())
	testutil.AssertTrue(t, len(mon.Entries()) > 0, "no node ever entered")
	testutil.AssertEqual(t, len(mon.Entries()), rep.Total(mutex.OutcomeEntered))
	for _, c := range coords {
		testutil.AssertEqual(t, types.StateReleased, c.State())
	}
}
