// Package session defines the core interfaces for creating and managing an
// execution session. A session owns the graph, scheduler and executor of
// exactly one run; nothing is shared between runs.
package session

import (
	"context"
	"errors"

	"github.com/specialistvlad/ttrpgconv/internal/executor"
	"github.com/specialistvlad/ttrpgconv/internal/graph"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/scheduler"
)

// ErrClosed is returned when a closed session is used.
var ErrClosed = errors.New("session is closed")

// Settings configures one session.
type Settings struct {
	// Name labels the pipeline in logs and String output.
	Name string
	// Executor controls parallelism, timeouts and the failure policy.
	Executor executor.Config
	// RequiredRoles replaces the default "at least one input" rule when set.
	RequiredRoles []plugin.Role
	// Observers are notified of node and run outcomes.
	Observers []executor.Observer
	// RunID fixes the run id; a random one is generated when empty.
	RunID string
}

// SessionFactory creates an execution Session. Different implementations can
// support various backends, such as local or distributed execution.
type SessionFactory interface {
	// NewSession builds the graph for descriptors and wires the run. Structural
	// errors (missing dependencies, cycles, duplicates) are returned here,
	// before anything executes.
	NewSession(
		ctx context.Context,
		descriptors []plugin.Descriptor,
		runner executor.NodeRunner,
		settings Settings,
	) (Session, error)
}

// Session represents a single execution run and manages its lifecycle.
type Session interface {
	Graph() graph.Graph
	// Plan computes the execution batches without running anything.
	Plan(ctx context.Context) ([]scheduler.Batch, error)
	// Execute plans and runs the pipeline.
	Execute(ctx context.Context) (*executor.Report, error)
	// Close releases any resources held by the session. It accepts a context
	// to allow for graceful cleanup operations.
	Close(ctx context.Context) error
}
