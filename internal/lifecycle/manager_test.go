package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fake(name string) *testutil.FakePlugin {
	return testutil.NewFakePlugin(testutil.Descriptor(name, []string{"input"}))
}

func TestManager_FullCycle(t *testing.T) {
	ctx := context.Background()
	m := New()
	p := fake("alpha")
	require.NoError(t, m.Add("alpha", p, plugin.Config{"a": 1}))

	require.NoError(t, m.Load(ctx, "alpha", plugin.Config{"b": 2}))
	assert.Equal(t, plugin.Config{"a": 1, "b": 2}, p.Config())
	st, err := m.State("alpha")
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, st)

	require.NoError(t, m.Start(ctx, "alpha"))
	st, _ = m.State("alpha")
	assert.Equal(t, StateRunning, st)

	require.NoError(t, m.Stop(ctx, "alpha"))
	require.NoError(t, m.Unload(ctx, "alpha"))
	st, _ = m.State("alpha")
	assert.Equal(t, StateRegistered, st)
	assert.Equal(t, int32(1), p.Inits.Load())
	assert.Equal(t, int32(1), p.Cleanups.Load())

	// Teardown after a clean unload must not clean up twice.
	require.NoError(t, m.Teardown(ctx, "alpha"))
	assert.Equal(t, int32(1), p.Cleanups.Load())
	_, err = m.State("alpha")
	assert.ErrorIs(t, err, ErrUnknownInstance)
}

func TestManager_AddDuplicate(t *testing.T) {
	m := New()
	require.NoError(t, m.Add("alpha", fake("alpha"), nil))
	assert.ErrorIs(t, m.Add("alpha", fake("alpha"), nil), ErrInstanceExists)
	assert.Error(t, m.Add("nil", nil, nil))
}

func TestManager_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	m := New()
	require.NoError(t, m.Add("alpha", fake("alpha"), nil))

	err := m.Start(ctx, "alpha")
	require.ErrorIs(t, err, ErrInvalidTransition)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StateRegistered, te.From)
	assert.Equal(t, "start", te.Op)

	st, _ := m.State("alpha")
	assert.Equal(t, StateRegistered, st, "a rejected transition must not change state")

	assert.ErrorIs(t, m.Stop(ctx, "alpha"), ErrInvalidTransition)
	assert.ErrorIs(t, m.Unload(ctx, "alpha"), ErrInvalidTransition)

	require.NoError(t, m.Load(ctx, "alpha", nil))
	assert.ErrorIs(t, m.Load(ctx, "alpha", nil), ErrInvalidTransition)
	require.NoError(t, m.Start(ctx, "alpha"))
	assert.ErrorIs(t, m.Unload(ctx, "alpha"), ErrInvalidTransition)

	assert.ErrorIs(t, m.Start(ctx, "ghost"), ErrUnknownInstance)
}

func TestManager_ConcurrentLoadsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	m := New()
	p := fake("alpha")
	p.InitFn = func(context.Context, plugin.Config) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	}
	require.NoError(t, m.Add("alpha", p, nil))

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = m.Load(ctx, "alpha", nil)
		}()
	}
	wg.Wait()

	ok, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInvalidTransition):
			rejected++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 2, rejected)
	assert.Equal(t, int32(1), p.Inits.Load())
}

func TestManager_FailedInitializeIsTerminalAndCleanedUp(t *testing.T) {
	ctx := context.Background()
	m := New()
	p := fake("alpha")
	p.InitFn = func(context.Context, plugin.Config) error { return errors.New("bad credentials") }
	require.NoError(t, m.Add("alpha", p, nil))

	err := m.Load(ctx, "alpha", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad credentials")

	info, ok := m.Snapshot("alpha")
	require.True(t, ok)
	assert.Equal(t, StateFailed, info.State)
	assert.Equal(t, "bad credentials", info.Reason)

	assert.ErrorIs(t, m.Load(ctx, "alpha", nil), ErrInvalidTransition)
	assert.ErrorIs(t, m.Start(ctx, "alpha"), ErrInvalidTransition)

	h := m.HealthCheck(ctx, "alpha")
	assert.Equal(t, plugin.HealthUnhealthy, h.State)
	assert.Equal(t, "bad credentials", h.Reason)

	require.NoError(t, m.ShutdownAll(ctx))
	assert.Equal(t, int32(1), p.Cleanups.Load())
}

func TestManager_InitializeTimeout(t *testing.T) {
	m := New(WithInitTimeout(30 * time.Millisecond))
	p := fake("slow")
	observed := make(chan struct{})
	p.InitFn = func(ctx context.Context, _ plugin.Config) error {
		<-ctx.Done()
		close(observed)
		return ctx.Err()
	}
	require.NoError(t, m.Add("slow", p, nil))

	err := m.Load(context.Background(), "slow", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timed out")

	st, _ := m.State("slow")
	assert.Equal(t, StateFailed, st)
	select {
	case <-observed:
	case <-time.After(time.Second):
		t.Fatal("initialize did not observe cancellation")
	}
}

func TestManager_HealthCheck(t *testing.T) {
	ctx := context.Background()
	m := New()
	degraded := fake("degraded")
	degraded.HealthFn = func(context.Context) plugin.Health { return plugin.Degraded("slow upstream") }
	require.NoError(t, m.Add("degraded", degraded, nil))
	require.NoError(t, m.Add("fresh", fake("fresh"), nil))
	require.NoError(t, m.Add("ok", fake("ok"), nil))

	require.NoError(t, m.Load(ctx, "degraded", nil))
	require.NoError(t, m.Load(ctx, "ok", nil))
	require.NoError(t, m.Start(ctx, "ok"))

	all := m.HealthCheckAll(ctx)
	assert.Equal(t, plugin.Degraded("slow upstream"), all["degraded"])
	assert.Equal(t, plugin.Unknown(), all["fresh"])
	assert.Equal(t, plugin.Healthy(), all["ok"])

	// Health checks never change state.
	st, _ := m.State("degraded")
	assert.Equal(t, StateLoaded, st)
	info, _ := m.Snapshot("degraded")
	assert.Equal(t, plugin.HealthDegraded, info.LastHealth.State)

	assert.Equal(t, plugin.HealthUnhealthy, m.HealthCheck(ctx, "ghost").State)
}

func TestManager_StatsAndInstances(t *testing.T) {
	ctx := context.Background()
	m := New()
	broken := fake("broken")
	broken.InitFn = func(context.Context, plugin.Config) error { return errors.New("nope") }
	require.NoError(t, m.Add("c", fake("c"), nil))
	require.NoError(t, m.Add("a", fake("a"), nil))
	require.NoError(t, m.Add("b", broken, nil))
	require.NoError(t, m.Load(ctx, "a", nil))
	require.NoError(t, m.Start(ctx, "a"))
	_ = m.Load(ctx, "b", nil)

	stats := m.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Count(StateRunning))
	assert.Equal(t, 1, stats.Count(StateFailed))
	assert.Equal(t, 1, stats.Count(StateRegistered))

	var ids []string
	for _, info := range m.Instances() {
		ids = append(ids, info.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestManager_ShutdownAll(t *testing.T) {
	ctx, logs := testutil.LoggedContext(context.Background())
	m := New()
	running := fake("running")
	failing := fake("failing")
	failing.CleanupFn = func(context.Context) error { return errors.New("socket already closed") }
	idle := fake("idle")

	for id, p := range map[string]*testutil.FakePlugin{"running": running, "failing": failing, "idle": idle} {
		require.NoError(t, m.Add(id, p, nil))
	}
	require.NoError(t, m.Load(ctx, "running", nil))
	require.NoError(t, m.Start(ctx, "running"))
	require.NoError(t, m.Load(ctx, "failing", nil))

	err := m.ShutdownAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "socket already closed")

	assert.Equal(t, int32(1), running.Cleanups.Load())
	assert.Equal(t, int32(1), failing.Cleanups.Load())
	assert.Equal(t, int32(1), idle.Cleanups.Load(), "never-initialised instances are cleaned up too")
	assert.Empty(t, m.Instances())
	assert.Contains(t, logs.String(), "Plugin teardown failed during shutdown.")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "registered", StateRegistered.String())
	assert.Equal(t, "running", StateRunning.String())
	b, err := StateFailed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "failed", string(b))
}
