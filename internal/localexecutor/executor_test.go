package localexecutor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/executor"
	"github.com/specialistvlad/ttrpgconv/internal/graph"
	"github.com/specialistvlad/ttrpgconv/internal/inmemorystore"
	"github.com/specialistvlad/ttrpgconv/internal/inmemorytopology"
	"github.com/specialistvlad/ttrpgconv/internal/node"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/scheduler"
	"github.com/specialistvlad/ttrpgconv/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test Helpers ---

func assemble(t *testing.T, descs []plugin.Descriptor) *graph.Manager {
	t.Helper()
	g := graph.New(inmemorytopology.New(), inmemorystore.New())
	require.NoError(t, graph.Assemble(context.Background(), g, descs))
	return g
}

func plan(t *testing.T, g *graph.Manager, maxParallel int) []scheduler.Batch {
	t.Helper()
	batches, err := scheduler.ComputeBatches(context.Background(), g, maxParallel)
	require.NoError(t, err)
	return batches
}

func config(continueOnError bool) executor.Config {
	cfg := executor.DefaultConfig()
	cfg.MaxParallel = 4
	cfg.PerNodeTimeout = 5 * time.Second
	cfg.ContinueOnError = continueOnError
	return cfg
}

// fanOut is input -> {left, right} -> sink.
func fanOut() []plugin.Descriptor {
	return []plugin.Descriptor{
		testutil.Descriptor("input", []string{"input"}),
		testutil.Descriptor("left", nil, "input"),
		testutil.Descriptor("right", nil, "input"),
		testutil.Descriptor("sink", []string{"export"}, "left", "right"),
	}
}

type eventLog struct {
	mu    sync.Mutex
	nodes []executor.NodeResult
	runs  int
}

func (l *eventLog) NodeFinished(_ context.Context, res executor.NodeResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nodes = append(l.nodes, res)
}

func (l *eventLog) RunFinished(_ context.Context, _ *executor.Report) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs++
}

// --- Tests ---

func TestExecute_LinearPipeline(t *testing.T) {
	ctx, logs := testutil.LoggedContext(context.Background())
	g := assemble(t, testutil.LinearPipeline())
	runner := &testutil.RecordingRunner{}
	obs := &eventLog{}

	report, err := New(g, runner, config(false), WithObserver(obs), WithRunID("run-1")).Execute(ctx, plan(t, g, 4))
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, []string{"export_c", "input_a", "validate_b"}, report.Executed)
	assert.Empty(t, report.Failed)
	assert.Empty(t, report.Skipped)
	assert.True(t, report.Succeeded())
	assert.Equal(t, []string{"input_a", "validate_b", "export_c"}, runner.Order())
	assert.Len(t, report.Durations, 3)
	assert.Equal(t, 3, report.Stats.TotalNodes)
	assert.Equal(t, node.StatusCompleted, g.NodeStatus(ctx, "export_c"))

	assert.Len(t, obs.nodes, 3)
	assert.Equal(t, 1, obs.runs)
	assert.Contains(t, logs.String(), "run_id=run-1")
}

func TestExecute_RunIDLoggedOnceWhenCallerTagged(t *testing.T) {
	ctx, logs := testutil.LoggedContext(context.Background())
	ctx = ctxlog.WithRunID(ctx, "run-7")
	g := assemble(t, testutil.LinearPipeline())

	_, err := New(g, &testutil.RecordingRunner{}, config(false), WithRunID("run-7")).Execute(ctx, plan(t, g, 4))
	require.NoError(t, err)

	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		assert.LessOrEqual(t, strings.Count(line, "run_id=run-7"), 1, line)
	}
	assert.Contains(t, logs.String(), "run_id=run-7")
}

func TestExecute_GeneratesRunID(t *testing.T) {
	g := assemble(t, testutil.LinearPipeline())
	report, err := New(g, &testutil.RecordingRunner{}, config(false)).Execute(context.Background(), plan(t, g, 4))
	require.NoError(t, err)
	assert.Len(t, report.RunID, 36)
}

func TestExecute_ContinueOnErrorSkipsDependents(t *testing.T) {
	g := assemble(t, testutil.LinearPipeline())
	runner := &testutil.RecordingRunner{Fail: map[string]bool{"validate_b": true}}

	report, err := New(g, runner, config(true)).Execute(context.Background(), plan(t, g, 4))
	require.NoError(t, err)

	assert.Equal(t, []string{"input_a"}, report.Executed)
	assert.Equal(t, []string{"validate_b"}, report.Failed)
	assert.Equal(t, []string{"export_c"}, report.Skipped)
	assert.False(t, runner.Ran("export_c"))
	assert.ErrorIs(t, report.Errors["validate_b"], executor.ErrExecutionFailure)
	assert.Contains(t, report.Errors["export_c"].Error(), "dependency 'validate_b' failed")
	assert.ErrorIs(t, report.Err(), executor.ErrExecutionFailure)
}

func TestExecute_ContinueOnErrorRunsIndependentBranches(t *testing.T) {
	g := assemble(t, []plugin.Descriptor{
		testutil.Descriptor("input", []string{"input"}),
		testutil.Descriptor("broken", nil, "input"),
		testutil.Descriptor("after_broken", nil, "broken"),
		testutil.Descriptor("healthy", nil, "input"),
		testutil.Descriptor("after_healthy", nil, "healthy"),
	})
	runner := &testutil.RecordingRunner{Fail: map[string]bool{"broken": true}}

	report, err := New(g, runner, config(true)).Execute(context.Background(), plan(t, g, 4))
	require.NoError(t, err)

	assert.Equal(t, []string{"after_healthy", "healthy", "input"}, report.Executed)
	assert.Equal(t, []string{"broken"}, report.Failed)
	assert.Equal(t, []string{"after_broken"}, report.Skipped)
}

func TestExecute_StopOnErrorDrainsBatchThenAborts(t *testing.T) {
	g := assemble(t, fanOut())
	runner := &testutil.RecordingRunner{
		Fail:      map[string]bool{"left": true},
		Durations: map[string]time.Duration{"right": 50 * time.Millisecond},
	}

	report, err := New(g, runner, config(false)).Execute(context.Background(), plan(t, g, 4))
	require.Error(t, err)
	require.NotNil(t, report)

	assert.ErrorIs(t, err, ErrRunAborted)
	assert.ErrorIs(t, err, executor.ErrExecutionFailure)
	// The sibling already in flight is allowed to finish.
	assert.Equal(t, []string{"input", "right"}, report.Executed)
	assert.Equal(t, []string{"left"}, report.Failed)
	assert.Equal(t, []string{"sink"}, report.Skipped)
	assert.False(t, runner.Ran("sink"))
}

func TestExecute_PerNodeTimeoutCancelsOnlyThatNode(t *testing.T) {
	g := assemble(t, fanOut())
	runner := &testutil.RecordingRunner{
		Hang:      map[string]bool{"left": true},
		Durations: map[string]time.Duration{"right": 20 * time.Millisecond},
	}
	cfg := config(true)
	cfg.PerNodeTimeout = 100 * time.Millisecond

	report, err := New(g, runner, cfg).Execute(context.Background(), plan(t, g, 4))
	require.NoError(t, err)

	assert.Equal(t, []string{"left"}, report.Failed)
	assert.ErrorIs(t, report.Errors["left"], executor.ErrExecutionTimeout)
	assert.Contains(t, report.Executed, "right")
	assert.False(t, runner.Cancelled("right"))
	assert.Equal(t, []string{"sink"}, report.Skipped)

	require.Eventually(t, func() bool { return runner.Cancelled("left") }, time.Second, 5*time.Millisecond)
}

func TestExecute_RespectsMaxParallel(t *testing.T) {
	g := graph.New(inmemorytopology.New(), inmemorystore.New())
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		n := node.New(id, plugin.RoleInput)
		require.NoError(t, g.AddNode(ctx, n))
	}
	runner := &testutil.RecordingRunner{Sleep: 30 * time.Millisecond}
	cfg := config(false)
	cfg.MaxParallel = 2

	batches := []scheduler.Batch{{"a", "b", "c", "d", "e", "f"}}
	report, err := New(g, runner, cfg).Execute(ctx, batches)
	require.NoError(t, err)

	assert.Len(t, report.Executed, 6)
	assert.LessOrEqual(t, runner.MaxInFlight(), 2)
	assert.Equal(t, 6, report.Stats.ParallelNodes)
}

func TestExecute_BatchMembersRunConcurrently(t *testing.T) {
	g := assemble(t, fanOut())
	runner := &testutil.RecordingRunner{Sleep: 50 * time.Millisecond}

	_, err := New(g, runner, config(false)).Execute(context.Background(), plan(t, g, 4))
	require.NoError(t, err)

	left, ok := runner.Record("left")
	require.True(t, ok)
	right, ok := runner.Record("right")
	require.True(t, ok)
	assert.True(t, left.Start.Before(right.End) && right.Start.Before(left.End), "left and right should overlap")

	input, _ := runner.Record("input")
	sink, _ := runner.Record("sink")
	assert.False(t, left.Start.Before(input.End))
	assert.False(t, sink.Start.Before(right.End))
}

func TestExecute_RunCancellation(t *testing.T) {
	g := assemble(t, testutil.LinearPipeline())
	runner := &testutil.RecordingRunner{Hang: map[string]bool{"input_a": true}}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	report, err := New(g, runner, config(true)).Execute(ctx, plan(t, g, 4))
	require.Error(t, err)
	require.NotNil(t, report)

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrRunAborted)
	assert.Equal(t, []string{"input_a"}, report.Failed)
	assert.Equal(t, []string{"export_c", "validate_b"}, report.Skipped)
	assert.False(t, runner.Ran("validate_b"))
	require.Eventually(t, func() bool { return runner.Cancelled("input_a") }, time.Second, 5*time.Millisecond)
}

func TestExecute_ValidatesBeforeRun(t *testing.T) {
	g := assemble(t, []plugin.Descriptor{
		testutil.Descriptor("orphan", []string{"export"}),
	})
	runner := &testutil.RecordingRunner{}

	report, err := New(g, runner, config(false)).Execute(context.Background(), plan(t, g, 4))
	require.ErrorIs(t, err, graph.ErrNoInputNode)
	assert.Nil(t, report)
	assert.False(t, runner.Ran("orphan"))

	cfg := config(false)
	cfg.ValidateBeforeRun = false
	report, err = New(g, runner, cfg).Execute(context.Background(), plan(t, g, 4))
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan"}, report.Executed)
}

func TestExecute_RunnerErrorIsWrapped(t *testing.T) {
	g := assemble(t, testutil.LinearPipeline()[:1])
	sentinel := errors.New("disk full")
	runner := executor.NodeRunnerFunc(func(context.Context, string) error { return sentinel })

	report, err := New(g, runner, config(false)).Execute(context.Background(), plan(t, g, 4))
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.ErrorIs(t, report.Errors["input_a"], executor.ErrExecutionFailure)
	assert.Equal(t, node.StatusFailed, g.NodeStatus(context.Background(), "input_a"))
	assert.ErrorIs(t, g.NodeError(context.Background(), "input_a"), sentinel)
}
