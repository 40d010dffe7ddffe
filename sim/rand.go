package sim

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is the randomness a Driver draws delays from.
type Rand interface {
	IntN(n int) int
	Int64N(n int64) int64
}

type globalRand struct{}

// NewRand returns a Rand backed by the auto-seeded global source.
func NewRand() Rand { return globalRand{} }

func (globalRand) IntN(n int) int       { return rand.IntN(n) }
func (globalRand) Int64N(n int64) int64 { return rand.Int64N(n) }

type seededRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededRand returns a deterministic Rand safe for concurrent use.
func NewSeededRand(seed uint64) Rand {
	return &seededRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *seededRand) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

func (s *seededRand) Int64N(n int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Int64N(n)
}

// between draws a duration uniformly from [lo, hi). It returns lo when the
// range is empty.
func between(r Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(r.Int64N(int64(hi-lo)))
}
