package executor

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/scheduler"
)

var (
	// ErrExecutionTimeout is recorded for a node whose execution unit did not
	// finish within the per-node timeout.
	ErrExecutionTimeout = errors.New("execution timeout")
	// ErrExecutionFailure wraps the error returned by a node's execution unit.
	ErrExecutionFailure = errors.New("execution failure")
)

// Executor drives the execution of precomputed batches.
type Executor interface {
	Execute(ctx context.Context, batches []scheduler.Batch) (*Report, error)
}

// Config controls how a run is executed.
type Config struct {
	// MaxParallel caps the number of nodes running at once.
	MaxParallel int
	// PerNodeTimeout bounds a single node's execution. Zero disables it.
	PerNodeTimeout time.Duration
	// ContinueOnError keeps later batches running after a node fails.
	ContinueOnError bool
	// ValidateBeforeRun re-validates the graph before the first batch.
	ValidateBeforeRun bool
}

// DefaultPerNodeTimeout is used when no timeout is configured.
const DefaultPerNodeTimeout = 5 * time.Minute

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		MaxParallel:       runtime.NumCPU(),
		PerNodeTimeout:    DefaultPerNodeTimeout,
		ContinueOnError:   false,
		ValidateBeforeRun: true,
	}
}

// NodeRunner is the execution unit bound to each node. Implementations must
// observe ctx: on timeout or abort the context is cancelled and the runner is
// expected to return promptly.
type NodeRunner interface {
	RunNode(ctx context.Context, id string) error
}

// NodeRunnerFunc adapts a plain function to NodeRunner.
type NodeRunnerFunc func(ctx context.Context, id string) error

// RunNode calls f(ctx, id).
func (f NodeRunnerFunc) RunNode(ctx context.Context, id string) error {
	return f(ctx, id)
}
