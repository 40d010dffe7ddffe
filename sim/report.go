package sim

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jathurchan/ralock/mutex"
	"github.com/jathurchan/ralock/types"
)

// Report counts the outcome of every entry attempt per node. A nil Report
// ignores records.
type Report struct {
	mu     sync.Mutex
	counts map[types.NodeID]map[mutex.Outcome]int
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{counts: make(map[types.NodeID]map[mutex.Outcome]int)}
}

// Record adds one outcome for id.
func (r *Report) Record(id types.NodeID, outcome mutex.Outcome) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	byOutcome, ok := r.counts[id]
	if !ok {
		byOutcome = make(map[mutex.Outcome]int)
		r.counts[id] = byOutcome
	}
	byOutcome[outcome]++
}

// Count returns how many times id ended with outcome.
func (r *Report) Count(id types.NodeID, outcome mutex.Outcome) int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[id][outcome]
}

// Total returns how many attempts of every node ended with outcome.
func (r *Report) Total(outcome mutex.Outcome) int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, byOutcome := range r.counts {
		n += byOutcome[outcome]
	}
	return n
}

// WriteTo renders the report as an aligned table, one row per node.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	if r == nil {
		r = NewReport()
	}
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	title := cases.Title(language.English)
	header := []string{"Node"}
	for _, o := range mutex.Outcomes {
		header = append(header, title.String(strings.ReplaceAll(o.String(), "_", " ")))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	r.mu.Lock()
	for _, id := range slices.Sorted(maps.Keys(r.counts)) {
		row := []string{id.String()}
		for _, o := range mutex.Outcomes {
			row = append(row, fmt.Sprint(r.counts[id][o]))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	r.mu.Unlock()

	if err := tw.Flush(); err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

func (r *Report) String() string {
	var sb strings.Builder
	_, _ = r.WriteTo(&sb)
	return sb.String()
}
