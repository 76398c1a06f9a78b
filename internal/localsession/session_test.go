package localsession

import (
	"context"
	"testing"

	"github.com/specialistvlad/ttrpgconv/internal/executor"
	"github.com/specialistvlad/ttrpgconv/internal/graph"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/scheduler"
	"github.com/specialistvlad/ttrpgconv/internal/session"
	"github.com/specialistvlad/ttrpgconv/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settings() session.Settings {
	cfg := executor.DefaultConfig()
	cfg.MaxParallel = 2
	return session.Settings{Name: "campaign", Executor: cfg, RunID: "fixed"}
}

func TestSession_PlanAndExecute(t *testing.T) {
	ctx := context.Background()
	runner := &testutil.RecordingRunner{}

	s, err := (&SessionFactory{}).NewSession(ctx, testutil.LinearPipeline(), runner, settings())
	require.NoError(t, err)
	defer s.Close(ctx)

	assert.Equal(t, "'campaign' (3 nodes, 2 edges)", s.Graph().(*graph.Manager).String())

	batches, err := s.Plan(ctx)
	require.NoError(t, err)
	assert.Equal(t, []scheduler.Batch{{"input_a"}, {"validate_b"}, {"export_c"}}, batches)

	report, err := s.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fixed", report.RunID)
	assert.Len(t, report.Executed, 3)
	assert.Equal(t, batches, report.Batches)
}

func TestSession_StructuralErrorsSurfaceAtCreation(t *testing.T) {
	ctx := context.Background()
	descs := []plugin.Descriptor{
		testutil.Descriptor("input_a", []string{"input"}),
		testutil.Descriptor("export_c", []string{"export"}, "missing"),
	}
	runner := &testutil.RecordingRunner{}

	_, err := (&SessionFactory{}).NewSession(ctx, descs, runner, settings())
	require.ErrorIs(t, err, graph.ErrMissingDependency)
	assert.Empty(t, runner.Order())
}

func TestSession_RequiredRoles(t *testing.T) {
	ctx := context.Background()
	st := settings()
	st.RequiredRoles = []plugin.Role{plugin.RoleInput, plugin.RoleLogging}

	s, err := (&SessionFactory{}).NewSession(ctx, testutil.LinearPipeline(), &testutil.RecordingRunner{}, st)
	require.NoError(t, err)

	_, err = s.Execute(ctx)
	require.ErrorIs(t, err, graph.ErrMissingRole)
}

func TestSession_Closed(t *testing.T) {
	ctx := context.Background()
	s, err := (&SessionFactory{}).NewSession(ctx, testutil.LinearPipeline(), &testutil.RecordingRunner{}, settings())
	require.NoError(t, err)

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))
	_, err = s.Execute(ctx)
	assert.ErrorIs(t, err, session.ErrClosed)
}
