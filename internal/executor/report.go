package executor

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/node"
	"github.com/specialistvlad/ttrpgconv/internal/scheduler"
)

// Stats holds aggregate counters for one run.
type Stats struct {
	TotalNodes    int
	Executed      int
	Failed        int
	Skipped       int
	ParallelNodes int
	WallTime      time.Duration
}

// Report enumerates the outcome of every node in a run.
type Report struct {
	RunID         string
	Executed      []string
	Failed        []string
	Skipped       []string
	Errors        map[string]error
	Durations     map[string]time.Duration
	TotalDuration time.Duration
	Batches       []scheduler.Batch
	Stats         Stats
}

// NewReport creates an empty report for the given run.
func NewReport(runID string, batches []scheduler.Batch) *Report {
	return &Report{
		RunID:     runID,
		Errors:    make(map[string]error),
		Durations: make(map[string]time.Duration),
		Batches:   batches,
	}
}

// Record files a node outcome under the matching list.
func (r *Report) Record(res NodeResult) {
	switch res.Status {
	case node.StatusCompleted:
		r.Executed = append(r.Executed, res.ID)
	case node.StatusFailed:
		r.Failed = append(r.Failed, res.ID)
	case node.StatusSkipped:
		r.Skipped = append(r.Skipped, res.ID)
	}
	if res.Err != nil {
		r.Errors[res.ID] = res.Err
	}
	if res.Status != node.StatusSkipped {
		r.Durations[res.ID] = res.Duration
	}
}

// Finalize sorts the outcome lists and fills in the aggregate counters.
func (r *Report) Finalize(total time.Duration) {
	sort.Strings(r.Executed)
	sort.Strings(r.Failed)
	sort.Strings(r.Skipped)
	r.TotalDuration = total

	parallel := 0
	nodes := 0
	for _, b := range r.Batches {
		nodes += len(b)
		if len(b) > 1 {
			parallel += len(b)
		}
	}
	r.Stats = Stats{
		TotalNodes:    nodes,
		Executed:      len(r.Executed),
		Failed:        len(r.Failed),
		Skipped:       len(r.Skipped),
		ParallelNodes: parallel,
		WallTime:      total,
	}
}

// Succeeded reports whether every node completed.
func (r *Report) Succeeded() bool {
	return len(r.Failed) == 0 && len(r.Skipped) == 0
}

// Err joins the errors of the failed nodes, or returns nil.
func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, id := range r.Failed {
		errs = append(errs, fmt.Errorf("node '%s': %w", id, r.Errors[id]))
	}
	return errors.Join(errs...)
}

// String renders a one-line summary.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %d executed, %d failed, %d skipped in %s",
		r.RunID, len(r.Executed), len(r.Failed), len(r.Skipped), r.TotalDuration.Round(time.Millisecond))
	return b.String()
}
