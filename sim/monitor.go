package sim

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jathurchan/ralock/types"
)

// Violation records two nodes observed inside the critical section at once.
type Violation struct {
	Holder  types.NodeID // node already inside
	Entrant types.NodeID // node that entered while Holder was inside
	At      time.Time
}

// Monitor observes critical section occupancy across every node of a
// process. Workloads report entry and exit; any entry while another node is
// inside is a mutual exclusion violation. A nil Monitor ignores reports.
type Monitor struct {
	mu         sync.Mutex
	now        func() time.Time
	inside     map[types.NodeID]time.Time
	entries    []types.NodeID
	violations []Violation
	held       map[types.NodeID]time.Duration
}

// NewMonitor returns an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		now:    time.Now,
		inside: make(map[types.NodeID]time.Time),
		held:   make(map[types.NodeID]time.Duration),
	}
}

// Enter records id entering the critical section.
func (m *Monitor) Enter(id types.NodeID) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	at := m.now()
	for _, holder := range slices.Sorted(maps.Keys(m.inside)) {
		m.violations = append(m.violations, Violation{Holder: holder, Entrant: id, At: at})
	}
	m.inside[id] = at
	m.entries = append(m.entries, id)
}

// Exit records id leaving the critical section.
func (m *Monitor) Exit(id types.NodeID) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if start, ok := m.inside[id]; ok {
		m.held[id] += m.now().Sub(start)
		delete(m.inside, id)
	}
}

// Violations returns every overlap observed so far.
func (m *Monitor) Violations() []Violation {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.violations)
}

// Entries returns the ids in the order they entered.
func (m *Monitor) Entries() []types.NodeID {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries)
}

// HeldFor returns the total time id spent inside the critical section.
func (m *Monitor) HeldFor(id types.NodeID) time.Duration {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[id]
}
