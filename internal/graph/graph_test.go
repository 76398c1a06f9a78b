package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/inmemorystore"
	"github.com/specialistvlad/ttrpgconv/internal/inmemorytopology"
	"github.com/specialistvlad/ttrpgconv/internal/node"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/topologystore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test Helpers ---

func newTestGraph(opts ...Option) *Manager {
	return New(inmemorytopology.New(), inmemorystore.New(), opts...)
}

func desc(name string, caps []string, deps ...string) plugin.Descriptor {
	return plugin.Descriptor{Name: name, Version: "1.0.0", Capabilities: caps, Dependencies: deps}
}

// scenario returns the three-stage pipeline input_a -> validate_b -> export_c.
func scenario() []plugin.Descriptor {
	return []plugin.Descriptor{
		desc("input_a", []string{"input"}),
		desc("validate_b", []string{"validation"}, "input_a"),
		desc("export_c", []string{"export"}, "validate_b"),
	}
}

// --- Tests ---

func TestBuildGraph_OneNodePerDescriptor(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph()

	require.NoError(t, BuildGraph(ctx, g, append(scenario(), desc("walls", nil))))

	nodes := g.AllNodes(ctx)
	require.Len(t, nodes, 4)
	assert.Empty(t, g.Edges(ctx), "BuildGraph must not add edges")

	roles := map[string]plugin.Role{}
	for _, n := range nodes {
		roles[n.ID] = n.Role
	}
	assert.Equal(t, map[string]plugin.Role{
		"input_a":    plugin.RoleInput,
		"validate_b": plugin.RoleValidation,
		"export_c":   plugin.RoleExport,
		"walls":      plugin.RoleProcessing,
	}, roles)
}

func TestResolveDeclaredDependencies(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph()
	require.NoError(t, Assemble(ctx, g, scenario()))

	assert.Equal(t, []topologystore.Edge{
		{From: "input_a", To: "validate_b", Weight: DefaultEdgeWeight},
		{From: "validate_b", To: "export_c", Weight: DefaultEdgeWeight},
	}, g.Edges(ctx))
	assert.Equal(t, "'pipeline' (3 nodes, 2 edges)", g.String())
}

func TestResolveDeclaredDependencies_MissingDependency(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph()
	descs := []plugin.Descriptor{desc("export_c", []string{"export"}, "ghost")}
	require.NoError(t, BuildGraph(ctx, g, descs))

	err := ResolveDeclaredDependencies(ctx, g, descs)
	require.ErrorIs(t, err, ErrMissingDependency)
	assert.Contains(t, err.Error(), "ghost")
}

func TestAddEdge_CycleLeavesGraphUnchanged(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph()
	require.NoError(t, Assemble(ctx, g, scenario()))
	before := g.Edges(ctx)

	err := g.AddEdge(ctx, "export_c", "input_a", 1)
	require.ErrorIs(t, err, ErrWouldCreateCycle)
	assert.Equal(t, before, g.Edges(ctx))

	err = g.AddEdge(ctx, "export_c", "nobody", 1)
	require.ErrorIs(t, err, ErrUnknownNode)
	assert.Equal(t, before, g.Edges(ctx))
}

func TestValidate_Succeeds(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph()
	require.NoError(t, Assemble(ctx, g, scenario()))

	diag, err := g.Validate(ctx)
	require.NoError(t, err)
	assert.Empty(t, diag.Unreachable)
	assert.Equal(t, 1, diag.RoleCounts[plugin.RoleInput])
}

func TestValidate_NoInputNode(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph()
	descs := []plugin.Descriptor{
		desc("validate_b", []string{"validation"}),
		desc("export_c", []string{"export"}, "validate_b"),
	}
	require.NoError(t, Assemble(ctx, g, descs))

	_, err := g.Validate(ctx)
	require.ErrorIs(t, err, ErrNoInputNode)
	require.ErrorIs(t, err, ErrMissingRole)
}

func TestValidate_CustomRequiredRoles(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(WithRequiredRoles(RequireRoles(plugin.RoleInput, plugin.RoleExport)))
	require.NoError(t, Assemble(ctx, g, []plugin.Descriptor{desc("input_a", []string{"input"})}))

	_, err := g.Validate(ctx)
	require.ErrorIs(t, err, ErrMissingRole)
	assert.False(t, errors.Is(err, ErrNoInputNode))

	var roleErr *MissingRoleError
	require.ErrorAs(t, err, &roleErr)
	assert.Equal(t, plugin.RoleExport, roleErr.Role)
}

func TestValidate_ReportsUnreachableWithoutFailing(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph()
	descs := append(scenario(), desc("orphan_logger", []string{"logging"}))
	require.NoError(t, Assemble(ctx, g, descs))

	diag, err := g.Validate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan_logger"}, diag.Unreachable)
}

// backEdgeStore injects an edge the in-memory store would refuse, so the
// cycle check in Validate can be exercised.
type backEdgeStore struct {
	topologystore.Store
	from, to string
}

func (s *backEdgeStore) DependentsOf(ctx context.Context, id string) ([]string, error) {
	deps, err := s.Store.DependentsOf(ctx, id)
	if id == s.from {
		deps = append(deps, s.to)
	}
	return deps, err
}

func TestValidate_DetectsCycle(t *testing.T) {
	ctx := context.Background()
	ts := &backEdgeStore{Store: inmemorytopology.New(), from: "export_c", to: "input_a"}
	g := New(ts, inmemorystore.New())
	require.NoError(t, Assemble(ctx, g, scenario()))

	_, err := g.Validate(ctx)
	require.ErrorIs(t, err, ErrWouldCreateCycle)
	assert.Contains(t, err.Error(), "export_c -> input_a -> validate_b -> export_c")

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"export_c", "input_a", "validate_b", "export_c"}, cycleErr.Path)
	assert.Equal(t, topologystore.Edge{From: "validate_b", To: "export_c"}, cycleErr.Edge)
}

func TestAssemble_SelfDependencyIsACycle(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph()
	descs := append(scenario(), desc("loop", []string{"processing"}, "input_a", "loop"))

	err := Assemble(ctx, g, descs)
	require.ErrorIs(t, err, ErrWouldCreateCycle)
	assert.NotErrorIs(t, err, ErrMissingDependency)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"loop", "loop"}, cycleErr.Path)
	assert.Contains(t, err.Error(), "plugin 'loop'")
}

func TestMarkTransitions(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph()
	require.NoError(t, Assemble(ctx, g, scenario()))

	require.NoError(t, g.MarkRunning(ctx, "input_a"))
	require.NoError(t, g.MarkCompleted(ctx, "input_a", 5*time.Millisecond))
	assert.Equal(t, node.StatusCompleted, g.NodeStatus(ctx, "input_a"))
	assert.Equal(t, 5*time.Millisecond, g.NodeDuration(ctx, "input_a"))

	boom := errors.New("boom")
	require.NoError(t, g.MarkRunning(ctx, "validate_b"))
	require.NoError(t, g.MarkFailed(ctx, "validate_b", boom, time.Millisecond))
	assert.Equal(t, boom, g.NodeError(ctx, "validate_b"))

	require.NoError(t, g.MarkSkipped(ctx, "export_c", errors.New("dependency failed")))
	assert.Equal(t, node.StatusSkipped, g.NodeStatus(ctx, "export_c"))

	// A completed node cannot run again within the same run.
	require.Error(t, g.MarkRunning(ctx, "input_a"))
	require.ErrorIs(t, g.MarkRunning(ctx, "ghost"), ErrUnknownNode)
}
