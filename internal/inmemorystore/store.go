// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the nodestore.Store interface.
//
// # Concurrency Model
//
// Unlike inmemorytopology which uses RWMutex, this store uses sync.Map:
// every batch member writes only its own keys, and the key space is fixed
// once the graph is built while the values change often.
package inmemorystore

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/node"
	"github.com/specialistvlad/ttrpgconv/internal/nodestore"
)

// Store is an in-memory implementation of nodestore.Store.
type Store struct {
	states    sync.Map // Key: node ID, Value: node.Status
	errors    sync.Map // Key: node ID, Value: error
	durations sync.Map // Key: node ID, Value: time.Duration
}

// New creates a new, empty in-memory node state store.
func New() nodestore.Store {
	return &Store{}
}

// SetStatus updates the execution status of a specific node.
func (s *Store) SetStatus(ctx context.Context, id string, status node.Status) error {
	s.states.Store(id, status)
	return nil
}

// GetStatus retrieves the execution status of a specific node.
// If a status has not been set, it returns StatusPending.
func (s *Store) GetStatus(ctx context.Context, id string) (node.Status, error) {
	status, ok := s.states.Load(id)
	if !ok {
		return node.StatusPending, nil
	}
	return status.(node.Status), nil
}

// SetError records the failure error of a node.
func (s *Store) SetError(ctx context.Context, id string, nodeErr error) error {
	s.errors.Store(id, nodeErr)
	return nil
}

// GetError retrieves the recorded error of a failed node.
func (s *Store) GetError(ctx context.Context, id string) (error, error) {
	err, ok := s.errors.Load(id)
	if !ok {
		return nil, nil // If not found, there is no error.
	}
	return err.(error), nil
}

// SetDuration records the wall time of a node's execution unit.
func (s *Store) SetDuration(ctx context.Context, id string, d time.Duration) error {
	s.durations.Store(id, d)
	return nil
}

// GetDuration retrieves the recorded wall time of a node.
func (s *Store) GetDuration(ctx context.Context, id string) (time.Duration, error) {
	d, ok := s.durations.Load(id)
	if !ok {
		return 0, nil
	}
	return d.(time.Duration), nil
}
