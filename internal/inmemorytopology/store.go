// Package inmemorytopology provides a simple, thread-safe, in-memory
// implementation of the topologystore.Store interface.
package inmemorytopology

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/specialistvlad/ttrpgconv/internal/node"
	"github.com/specialistvlad/ttrpgconv/internal/topologystore"
)

// Store implements the topologystore.Store interface using maps and a mutex
// for thread-safe concurrent access.
type Store struct {
	mu         sync.RWMutex
	nodes      map[string]*node.Node
	deps       map[string]map[string]float64 // Key: node ID, Value: dependency ID -> weight
	dependents map[string]map[string]float64 // Key: node ID, Value: dependent ID -> weight
}

// New creates a new, empty in-memory topology store.
func New() topologystore.Store {
	return &Store{
		nodes:      make(map[string]*node.Node),
		deps:       make(map[string]map[string]float64),
		dependents: make(map[string]map[string]float64),
	}
}

// AddNode adds a new node to the store.
func (s *Store) AddNode(ctx context.Context, n *node.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[n.ID]; exists {
		return fmt.Errorf("%w: '%s'", topologystore.ErrDuplicateNode, n.ID)
	}
	s.nodes[n.ID] = n
	return nil
}

// AddDependency creates a dependency link from one node to another. The
// cycle check and the insert happen under the same write lock.
func (s *Store) AddDependency(ctx context.Context, from, to string, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[from]; !exists {
		return fmt.Errorf("dependency source node '%s': %w", from, topologystore.ErrUnknownNode)
	}
	if _, exists := s.nodes[to]; !exists {
		return fmt.Errorf("dependency target node '%s': %w", to, topologystore.ErrUnknownNode)
	}
	if _, exists := s.deps[to][from]; exists {
		return nil
	}

	edge := topologystore.Edge{From: from, To: to, Weight: weight}
	if from == to {
		return &topologystore.CycleError{Edge: edge, Path: []string{from, from}}
	}
	if path := s.pathLocked(to, from); path != nil {
		// path runs to ->* from; the new edge closes it back to 'to'.
		return &topologystore.CycleError{Edge: edge, Path: append(path, to)}
	}

	if s.deps[to] == nil {
		s.deps[to] = make(map[string]float64)
	}
	if s.dependents[from] == nil {
		s.dependents[from] = make(map[string]float64)
	}
	s.deps[to][from] = weight
	s.dependents[from][to] = weight
	return nil
}

// pathLocked returns a forward path src ->* dst, or nil if dst is unreachable.
// It is a breadth-first search, O(V+E). The caller must hold the lock.
func (s *Store) pathLocked(src, dst string) []string {
	parent := map[string]string{src: ""}
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == dst {
			var path []string
			for at := dst; at != ""; at = parent[at] {
				path = append(path, at)
			}
			slices.Reverse(path)
			return path
		}
		for _, next := range sortedKeys(s.dependents[cur]) {
			if _, seen := parent[next]; seen {
				continue
			}
			parent[next] = cur
			queue = append(queue, next)
		}
	}
	return nil
}

// GetNode retrieves a single node by its id.
func (s *Store) GetNode(ctx context.Context, id string) (*node.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	return n, ok
}

// AllNodes returns a slice of all nodes in the topology, sorted by id.
func (s *Store) AllNodes(ctx context.Context) []*node.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*node.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Edges returns all edges sorted by source then target.
func (s *Store) Edges(ctx context.Context) []topologystore.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var edges []topologystore.Edge
	for from, targets := range s.dependents {
		for to, w := range targets {
			edges = append(edges, topologystore.Edge{From: from, To: to, Weight: w})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// DependenciesOf returns the ids of all nodes that the given node depends on.
func (s *Store) DependenciesOf(ctx context.Context, id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.nodes[id]; !exists {
		return nil, fmt.Errorf("node '%s': %w", id, topologystore.ErrUnknownNode)
	}
	return sortedKeys(s.deps[id]), nil
}

// DependentsOf returns the ids of all nodes that depend on the given node.
func (s *Store) DependentsOf(ctx context.Context, id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.nodes[id]; !exists {
		return nil, fmt.Errorf("node '%s': %w", id, topologystore.ErrUnknownNode)
	}
	return sortedKeys(s.dependents[id]), nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
