package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/node"
	"github.com/specialistvlad/ttrpgconv/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_RecordAndFinalize(t *testing.T) {
	r := NewReport("run-1", []scheduler.Batch{{"a"}, {"b", "c"}, {"d"}})
	boom := errors.New("boom")

	r.Record(NodeResult{ID: "a", Status: node.StatusCompleted, Duration: time.Second})
	r.Record(NodeResult{ID: "c", Status: node.StatusFailed, Err: boom, Duration: 2 * time.Second})
	r.Record(NodeResult{ID: "b", Status: node.StatusCompleted, Duration: time.Second})
	r.Record(NodeResult{ID: "d", Status: node.StatusSkipped, Err: errors.New("dependency failed")})
	r.Finalize(5 * time.Second)

	assert.Equal(t, []string{"a", "b"}, r.Executed)
	assert.Equal(t, []string{"c"}, r.Failed)
	assert.Equal(t, []string{"d"}, r.Skipped)
	assert.NotContains(t, r.Durations, "d")
	assert.Equal(t, Stats{TotalNodes: 4, Executed: 2, Failed: 1, Skipped: 1, ParallelNodes: 2, WallTime: 5 * time.Second}, r.Stats)

	assert.False(t, r.Succeeded())
	err := r.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "node 'c'")
	assert.Contains(t, r.String(), "2 executed, 1 failed, 1 skipped")
}

func TestReport_Success(t *testing.T) {
	r := NewReport("run-2", []scheduler.Batch{{"a"}})
	r.Record(NodeResult{ID: "a", Status: node.StatusCompleted})
	r.Finalize(time.Millisecond)

	assert.True(t, r.Succeeded())
	assert.NoError(t, r.Err())
}

type countingObserver struct {
	nodes int
	runs  int
}

func (c *countingObserver) NodeFinished(_ context.Context, _ NodeResult) { c.nodes++ }
func (c *countingObserver) RunFinished(_ context.Context, _ *Report)     { c.runs++ }

func TestObservers_FanOut(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	obs := Observers{a, b}

	obs.NodeFinished(context.Background(), NodeResult{ID: "x"})
	obs.RunFinished(context.Background(), NewReport("r", nil))

	assert.Equal(t, 1, a.nodes)
	assert.Equal(t, 1, b.runs)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.GreaterOrEqual(t, cfg.MaxParallel, 1)
	assert.Equal(t, DefaultPerNodeTimeout, cfg.PerNodeTimeout)
	assert.False(t, cfg.ContinueOnError)
	assert.True(t, cfg.ValidateBeforeRun)
}
