package graph

import (
	"context"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/node"
	"github.com/specialistvlad/ttrpgconv/internal/topologystore"
)

// Graph is a unified interface for interacting with the execution DAG,
// combining static topology queries with dynamic state updates.
//
// # Usage Patterns
//
// The resolver uses AddNode and AddEdge while the pipeline is assembled.
// The scheduler uses AllNodes and Edges to compute batches. The executor uses
// DependenciesOf and NodeStatus to decide whether a node must be skipped, and
// the Mark* methods to record outcomes.
//
// # Thread-Safety
//
// Implementations MUST be thread-safe, as batch members record their outcomes
// concurrently.
type Graph interface {
	// AddNode adds a node; duplicate ids are rejected.
	AddNode(ctx context.Context, n *node.Node) error

	// AddEdge records that 'from' must complete before 'to' starts.
	// Errors: ErrUnknownNode, ErrWouldCreateCycle. A rejected edge leaves the
	// graph unchanged.
	AddEdge(ctx context.Context, from, to string, weight float64) error

	// Node retrieves a node by id.
	Node(ctx context.Context, id string) (*node.Node, bool)

	// AllNodes returns every node sorted by id.
	AllNodes(ctx context.Context) []*node.Node

	// Edges returns every edge sorted by (From, To).
	Edges(ctx context.Context) []topologystore.Edge

	// DependenciesOf returns the ids 'id' directly depends on.
	DependenciesOf(ctx context.Context, id string) ([]string, error)

	// DependentsOf returns the ids directly depending on 'id'.
	DependentsOf(ctx context.Context, id string) ([]string, error)

	// NodeStatus returns the node's status in the current run.
	NodeStatus(ctx context.Context, id string) node.Status

	// NodeError returns the error recorded for a failed or skipped node.
	NodeError(ctx context.Context, id string) error

	// NodeDuration returns the recorded execution time of a node.
	NodeDuration(ctx context.Context, id string) time.Duration

	// MarkRunning transitions a node Pending → Running.
	MarkRunning(ctx context.Context, id string) error

	// MarkCompleted transitions a node Running → Completed.
	MarkCompleted(ctx context.Context, id string, took time.Duration) error

	// MarkFailed transitions a node Running → Failed and records the cause.
	MarkFailed(ctx context.Context, id string, nodeErr error, took time.Duration) error

	// MarkSkipped transitions a node Pending → Skipped and records why.
	MarkSkipped(ctx context.Context, id string, reason error) error

	// Validate checks the graph is fit for execution.
	Validate(ctx context.Context) (*Diagnostics, error)
}
