package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/node"
	"github.com/specialistvlad/ttrpgconv/internal/nodestore"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/topologystore"
)

// RolePredicate reports whether a role must appear at least once.
type RolePredicate func(plugin.Role) bool

// RequireInput is the default predicate: at least one Input node.
func RequireInput(r plugin.Role) bool {
	return r == plugin.RoleInput
}

// RequireRoles builds a predicate requiring each of the given roles.
func RequireRoles(roles ...plugin.Role) RolePredicate {
	set := make(map[plugin.Role]bool, len(roles))
	for _, r := range roles {
		set[r] = true
	}
	return func(r plugin.Role) bool { return set[r] }
}

// Option configures a Manager.
type Option func(*Manager)

// WithName sets the pipeline name used in logs and String.
func WithName(name string) Option {
	return func(m *Manager) { m.name = name }
}

// WithRequiredRoles replaces the required-role predicate used by Validate.
func WithRequiredRoles(p RolePredicate) Option {
	return func(m *Manager) {
		if p != nil {
			m.required = p
		}
	}
}

// Manager provides a high-level, thread-safe interface to the execution graph
// by composing a topology store and a node state store.
type Manager struct {
	name     string
	required RolePredicate
	topology topologystore.Store
	state    nodestore.Store
}

var _ Graph = (*Manager)(nil)

// New creates a new graph manager over the given stores.
func New(ts topologystore.Store, ns nodestore.Store, opts ...Option) *Manager {
	m := &Manager{
		name:     "pipeline",
		required: RequireInput,
		topology: ts,
		state:    ns,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the pipeline name.
func (m *Manager) Name() string {
	return m.name
}

func (m *Manager) AddNode(ctx context.Context, n *node.Node) error {
	if err := m.topology.AddNode(ctx, n); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Node added to graph.", "id", n.ID, "role", n.Role.String(), "priority", n.Priority, "parallel_safe", n.ParallelSafe)
	return nil
}

func (m *Manager) AddEdge(ctx context.Context, from, to string, weight float64) error {
	if err := m.topology.AddDependency(ctx, from, to, weight); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Edge added to graph.", "from", from, "to", to, "weight", weight)
	return nil
}

func (m *Manager) Node(ctx context.Context, id string) (*node.Node, bool) {
	return m.topology.GetNode(ctx, id)
}

func (m *Manager) AllNodes(ctx context.Context) []*node.Node {
	return m.topology.AllNodes(ctx)
}

func (m *Manager) Edges(ctx context.Context) []topologystore.Edge {
	return m.topology.Edges(ctx)
}

func (m *Manager) DependenciesOf(ctx context.Context, id string) ([]string, error) {
	return m.topology.DependenciesOf(ctx, id)
}

func (m *Manager) DependentsOf(ctx context.Context, id string) ([]string, error) {
	return m.topology.DependentsOf(ctx, id)
}

func (m *Manager) NodeStatus(ctx context.Context, id string) node.Status {
	status, err := m.state.GetStatus(ctx, id)
	if err != nil {
		return node.StatusPending
	}
	return status
}

func (m *Manager) NodeError(ctx context.Context, id string) error {
	nodeErr, err := m.state.GetError(ctx, id)
	if err != nil {
		return err
	}
	return nodeErr
}

func (m *Manager) NodeDuration(ctx context.Context, id string) time.Duration {
	d, _ := m.state.GetDuration(ctx, id)
	return d
}

func (m *Manager) MarkRunning(ctx context.Context, id string) error {
	return m.transition(ctx, id, node.StatusRunning, node.StatusPending)
}

func (m *Manager) MarkCompleted(ctx context.Context, id string, took time.Duration) error {
	if err := m.transition(ctx, id, node.StatusCompleted, node.StatusRunning); err != nil {
		return err
	}
	return m.state.SetDuration(ctx, id, took)
}

func (m *Manager) MarkFailed(ctx context.Context, id string, nodeErr error, took time.Duration) error {
	if err := m.transition(ctx, id, node.StatusFailed, node.StatusRunning); err != nil {
		return err
	}
	if err := m.state.SetDuration(ctx, id, took); err != nil {
		return err
	}
	return m.state.SetError(ctx, id, nodeErr)
}

func (m *Manager) MarkSkipped(ctx context.Context, id string, reason error) error {
	if err := m.transition(ctx, id, node.StatusSkipped, node.StatusPending); err != nil {
		return err
	}
	if reason == nil {
		return nil
	}
	return m.state.SetError(ctx, id, reason)
}

// transition moves a node to 'to' if it is currently in 'from'. Each node is
// driven by a single goroutine per run, so check-then-set is sufficient.
func (m *Manager) transition(ctx context.Context, id string, to, from node.Status) error {
	if _, ok := m.topology.GetNode(ctx, id); !ok {
		return fmt.Errorf("node '%s': %w", id, ErrUnknownNode)
	}
	current, err := m.state.GetStatus(ctx, id)
	if err != nil {
		return err
	}
	if current != from {
		return fmt.Errorf("node '%s': cannot move from %s to %s", id, current, to)
	}
	return m.state.SetStatus(ctx, id, to)
}

// String renders the pipeline summary, e.g. "'convert' (3 nodes, 2 edges)".
func (m *Manager) String() string {
	ctx := context.Background()
	return fmt.Sprintf("'%s' (%d nodes, %d edges)", m.name, len(m.topology.AllNodes(ctx)), len(m.topology.Edges(ctx)))
}
