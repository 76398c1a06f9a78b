package graph

import (
	"context"
	"errors"
	"slices"

	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/topologystore"
)

// Diagnostics holds non-fatal findings from Validate.
type Diagnostics struct {
	// Unreachable lists nodes no Input node reaches through forward edges.
	Unreachable []string
	// RoleCounts is the number of nodes per role.
	RoleCounts map[plugin.Role]int
}

// Validate checks that the graph is acyclic, that every required role is
// present and reports unreachable nodes. Diagnostics are returned even when
// validation fails.
func (m *Manager) Validate(ctx context.Context) (*Diagnostics, error) {
	logger := ctxlog.FromContext(ctx)
	diag := &Diagnostics{RoleCounts: make(map[plugin.Role]int)}

	nodes := m.AllNodes(ctx)
	var inputs []string
	for _, n := range nodes {
		diag.RoleCounts[n.Role]++
		if n.Role == plugin.RoleInput {
			inputs = append(inputs, n.ID)
		}
	}

	if cycle := m.findCycle(ctx); cycle != nil {
		n := len(cycle)
		return diag, &CycleError{Edge: topologystore.Edge{From: cycle[n-2], To: cycle[n-1]}, Path: cycle}
	}

	var errs []error
	for _, r := range plugin.Roles {
		if m.required(r) && diag.RoleCounts[r] == 0 {
			errs = append(errs, &MissingRoleError{Role: r})
		}
	}
	if len(errs) > 0 {
		return diag, errors.Join(errs...)
	}

	reached := make(map[string]bool, len(nodes))
	queue := slices.Clone(inputs)
	for _, id := range inputs {
		reached[id] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		next, err := m.DependentsOf(ctx, cur)
		if err != nil {
			return diag, err
		}
		for _, n := range next {
			if !reached[n] {
				reached[n] = true
				queue = append(queue, n)
			}
		}
	}
	for _, n := range nodes {
		if !reached[n.ID] {
			diag.Unreachable = append(diag.Unreachable, n.ID)
		}
	}
	if len(diag.Unreachable) > 0 {
		logger.Warn("Some plugins are not reachable from any input plugin.", "pipeline", m.name, "unreachable", diag.Unreachable)
	}

	logger.Debug("Graph validation passed.", "pipeline", m.name, "nodes", len(nodes))
	return diag, nil
}

const (
	white = iota // unvisited
	grey         // on the current DFS path
	black        // fully explored
)

// findCycle runs a three-colour DFS and returns one cycle, or nil.
func (m *Manager) findCycle(ctx context.Context) []string {
	color := make(map[string]int)
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		stack = append(stack, id)
		next, _ := m.DependentsOf(ctx, id)
		for _, n := range next {
			switch color[n] {
			case grey:
				start := slices.Index(stack, n)
				cycle = append(slices.Clone(stack[start:]), n)
				return true
			case white:
				if visit(n) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, n := range m.AllNodes(ctx) {
		if color[n.ID] == white && visit(n.ID) {
			return cycle
		}
	}
	return nil
}
