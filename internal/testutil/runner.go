package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// RecordingRunner is a node runner for scheduler and executor tests. It
// records when each node ran and how many nodes were in flight at once.
type RecordingRunner struct {
	// Sleep is how long every node takes unless overridden in Durations.
	Sleep time.Duration
	// Durations overrides Sleep per node id.
	Durations map[string]time.Duration
	// Fail makes the listed nodes return an error.
	Fail map[string]bool
	// Hang makes the listed nodes block until their context is cancelled.
	Hang map[string]bool

	mu        sync.Mutex
	records   map[string]*ExecutionRecord
	order     []string
	cancelled map[string]bool

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

// RunNode implements executor.NodeRunner.
func (r *RecordingRunner) RunNode(ctx context.Context, id string) error {
	cur := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		peak := r.maxInFlight.Load()
		if cur <= peak || r.maxInFlight.CompareAndSwap(peak, cur) {
			break
		}
	}

	start := time.Now()
	defer func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.records == nil {
			r.records = make(map[string]*ExecutionRecord)
		}
		r.records[id] = &ExecutionRecord{Start: start, End: time.Now()}
		r.order = append(r.order, id)
	}()

	if r.Hang[id] {
		<-ctx.Done()
		r.markCancelled(id)
		return ctx.Err()
	}

	d := r.Sleep
	if v, ok := r.Durations[id]; ok {
		d = v
	}
	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			r.markCancelled(id)
			return ctx.Err()
		}
	}

	if r.Fail[id] {
		return fmt.Errorf("node %s failed on purpose", id)
	}
	return nil
}

func (r *RecordingRunner) markCancelled(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled == nil {
		r.cancelled = make(map[string]bool)
	}
	r.cancelled[id] = true
}

// Ran reports whether the node was attempted.
func (r *RecordingRunner) Ran(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[id]
	return ok
}

// Record returns the execution record of a node, if any.
func (r *RecordingRunner) Record(id string) (ExecutionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return ExecutionRecord{}, false
	}
	return *rec, true
}

// Order returns node ids in the order they finished.
func (r *RecordingRunner) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Cancelled reports whether the node observed its context being cancelled.
func (r *RecordingRunner) Cancelled(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled[id]
}

// MaxInFlight returns the highest number of nodes seen running at once.
func (r *RecordingRunner) MaxInFlight() int {
	return int(r.maxInFlight.Load())
}
