package graph

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/topologystore"
)

var (
	// ErrUnknownNode is returned when an id is not part of the graph.
	ErrUnknownNode = topologystore.ErrUnknownNode
	// ErrWouldCreateCycle is returned when an edge would close a loop.
	ErrWouldCreateCycle = topologystore.ErrWouldCreateCycle
	// ErrMissingDependency is returned when a declared dependency names a
	// plugin that is not part of the pipeline.
	ErrMissingDependency = errors.New("missing dependency")
	// ErrNoInputNode is returned by Validate when the graph has no Input node.
	ErrNoInputNode = errors.New("pipeline has no input node")
	// ErrMissingRole is returned by Validate when any required role is absent.
	ErrMissingRole = errors.New("pipeline is missing a required role")
)

// CycleError is returned by AddEdge and Validate when edges form a loop.
type CycleError = topologystore.CycleError

// MissingRoleError names the required role that has no node.
type MissingRoleError struct {
	Role plugin.Role
}

func (e *MissingRoleError) Error() string {
	if e.Role == plugin.RoleInput {
		return ErrNoInputNode.Error()
	}
	return fmt.Sprintf("%s: no node with role '%s'", ErrMissingRole, e.Role)
}

// Is matches ErrMissingRole for every role, and ErrNoInputNode for Input.
func (e *MissingRoleError) Is(target error) bool {
	if target == ErrMissingRole {
		return true
	}
	return target == ErrNoInputNode && e.Role == plugin.RoleInput
}
