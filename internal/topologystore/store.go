// Package topologystore defines the interface for storing and retrieving the
// static structure of a plugin dependency graph.
//
// # Why Topology Store Exists
//
// The topology store isolates the DAG structure (nodes and the edges between
// them) from the mutable per-run state kept by nodestore. The scheduler only
// reads structure; the executor only writes state. Keeping them apart lets the
// structure use an RWMutex while state writes stay lock-free.
//
// # Lifecycle and Usage
//
// A topology store is:
//  1. Created once per pipeline run by the session factory.
//  2. Populated while the graph is assembled (nodes, then dependency edges).
//  3. Read-only while the run executes.
//  4. Discarded when the session closes. It is never reused across runs.
//
// # Acyclicity
//
// Implementations must reject an edge that would close a cycle before they
// mutate anything, so a rejected AddDependency leaves the store exactly as it
// was. Callers rely on this to skip global re-validation after each insert.
package topologystore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/ttrpgconv/internal/node"
)

var (
	// ErrUnknownNode is returned when an edge references a node id that is
	// not part of the topology.
	ErrUnknownNode = errors.New("unknown node")
	// ErrWouldCreateCycle is returned when an edge would close a loop.
	ErrWouldCreateCycle = errors.New("edge would create a cycle")
	// ErrDuplicateNode is returned when a node id is added twice.
	ErrDuplicateNode = errors.New("duplicate node")
)

// Edge is a directed dependency: From must complete before To starts.
// Weight is advisory and only used to break ties between equally ready nodes.
type Edge struct {
	From   string
	To     string
	Weight float64
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s", e.From, e.To)
}

// CycleError describes an edge that closes a cycle, either rejected on insert
// or found by a later validation pass.
// Path lists the loop starting and ending at the same node.
type CycleError struct {
	Edge Edge
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("edge %s: %s: %s", e.Edge, ErrWouldCreateCycle, strings.Join(e.Path, " -> "))
}

// Is makes errors.Is(err, ErrWouldCreateCycle) match.
func (e *CycleError) Is(target error) bool {
	return target == ErrWouldCreateCycle
}

// Store is the interface for managing the static topology of a DAG.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent use. The graph is assembled from
// one goroutine but read by many during execution.
//
// # Typical Implementation
//
// See internal/inmemorytopology for the in-memory implementation.
type Store interface {
	// AddNode registers a node. Adding an id twice returns ErrDuplicateNode.
	AddNode(ctx context.Context, n *node.Node) error

	// AddDependency records that 'to' depends on 'from'.
	//
	// Both nodes must exist (ErrUnknownNode otherwise). If a path from 'to'
	// back to 'from' already exists, or from == to, the edge is rejected
	// with a *CycleError and nothing is changed. Adding an edge that already
	// exists is a no-op that keeps the original weight.
	AddDependency(ctx context.Context, from, to string, weight float64) error

	// GetNode retrieves a single node by id.
	GetNode(ctx context.Context, id string) (*node.Node, bool)

	// AllNodes returns every node, sorted by id.
	AllNodes(ctx context.Context) []*node.Node

	// Edges returns every edge, sorted by (From, To).
	Edges(ctx context.Context) []Edge

	// DependenciesOf returns the sorted ids 'id' directly depends on.
	DependenciesOf(ctx context.Context, id string) ([]string, error)

	// DependentsOf returns the sorted ids that directly depend on 'id'.
	DependentsOf(ctx context.Context, id string) ([]string, error)
}
