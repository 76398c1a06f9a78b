// Package node defines the scheduling-time wrapper around a plugin descriptor
// and the execution status a node moves through during one run.
package node

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/specialistvlad/ttrpgconv/internal/plugin"
)

// Capability tags that tune scheduling.
const (
	// ExclusiveCapability marks a node that must not share a batch.
	ExclusiveCapability = "exclusive"
	// PriorityCapabilityPrefix overrides the role's default priority, e.g. "priority:5".
	PriorityCapabilityPrefix = "priority:"
)

// defaultPriority orders roles when no explicit priority is declared.
var defaultPriority = map[plugin.Role]int{
	plugin.RoleInput:      0,
	plugin.RoleValidation: 10,
	plugin.RoleAsset:      20,
	plugin.RoleProcessing: 30,
	plugin.RoleExport:     40,
	plugin.RoleLogging:    50,
}

// Node is a single vertex in the execution graph.
type Node struct {
	// ID is the descriptor name.
	ID string
	// Role drives ordering rules, never behaviour.
	Role plugin.Role
	// Priority is a tie-break hint; lower runs first.
	Priority int
	// ParallelSafe nodes may share a batch with siblings.
	ParallelSafe bool
	// Descriptor is the catalogue entry the node was built from.
	Descriptor plugin.Descriptor
}

// New creates a parallel-safe node with the role's default priority.
func New(id string, role plugin.Role) *Node {
	return &Node{
		ID:           id,
		Role:         role,
		Priority:     DefaultPriority(role),
		ParallelSafe: true,
	}
}

// FromDescriptor builds a node, inferring role, priority and parallel safety
// from the descriptor's capability tags.
func FromDescriptor(d plugin.Descriptor) (*Node, error) {
	n := New(d.Name, d.Role())
	n.Descriptor = d.Clone()

	for _, c := range n.Descriptor.Capabilities {
		switch {
		case c == ExclusiveCapability:
			n.ParallelSafe = false
		case strings.HasPrefix(c, PriorityCapabilityPrefix):
			p, err := strconv.Atoi(strings.TrimPrefix(c, PriorityCapabilityPrefix))
			if err != nil {
				return nil, fmt.Errorf("plugin '%s': invalid priority capability '%s': %w", d.Name, c, err)
			}
			n.Priority = p
		}
	}
	return n, nil
}

// DefaultPriority returns the priority used for a role without an override.
func DefaultPriority(r plugin.Role) int {
	return defaultPriority[r]
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(%s, priority=%d, parallel_safe=%t)", n.ID, n.Role, n.Priority, n.ParallelSafe)
}
