// Package nodestore defines the interface for storing and retrieving the
// mutable execution state of graph nodes during one pipeline run.
//
// # Why Node Store Exists
//
// The node store keeps per-run outcomes (status, error, duration) apart from
// the immutable structure held by topologystore. The executor writes here
// concurrently from every batch member; the scheduler never needs to.
//
// # Lifecycle and Usage
//
// The node store is:
//  1. Created once per run by the session factory.
//  2. Implicitly Pending for every node before execution starts.
//  3. Mutated while batches run.
//  4. Read when the run report is assembled, then discarded.
//
// # State Transitions
//
//	Pending → Running → Completed | Failed
//	Pending → Skipped
package nodestore

import (
	"context"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/node"
)

// Store is the interface for managing the mutable execution state of nodes.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent reads and writes, as every
// member of a batch records its outcome from its own goroutine.
//
// # Typical Implementation
//
// See internal/inmemorystore for the sync.Map based implementation.
type Store interface {
	// SetStatus updates the execution status of a node.
	SetStatus(ctx context.Context, id string, status node.Status) error

	// GetStatus returns the status of a node, StatusPending if never set.
	GetStatus(ctx context.Context, id string) (node.Status, error)

	// SetError records why a node failed or was skipped.
	SetError(ctx context.Context, id string, nodeErr error) error

	// GetError returns the recorded error of a node, nil if none.
	GetError(ctx context.Context, id string) (error, error)

	// SetDuration records how long a node's execution unit ran.
	SetDuration(ctx context.Context, id string, d time.Duration) error

	// GetDuration returns the recorded duration, zero if none.
	GetDuration(ctx context.Context, id string) (time.Duration, error)
}
