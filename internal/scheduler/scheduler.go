package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/node"
	"github.com/specialistvlad/ttrpgconv/internal/topologystore"
)

// ErrSchedulingInconsistency signals that the graph could not be layered,
// which means an invariant was violated upstream.
var ErrSchedulingInconsistency = errors.New("scheduling inconsistency")

// Batch is an ordered list of node ids eligible to run concurrently.
type Batch []string

// Topology is the read-only view of a graph the scheduler needs.
type Topology interface {
	AllNodes(ctx context.Context) []*node.Node
	Edges(ctx context.Context) []topologystore.Edge
}

// Scheduler produces the execution batches for a graph.
type Scheduler interface {
	Batches(ctx context.Context) ([]Batch, error)
}

// DefaultScheduler computes batches with ComputeBatches.
type DefaultScheduler struct {
	topology    Topology
	maxParallel int
}

// New creates a scheduler for the given graph and concurrency cap.
func New(t Topology, maxParallel int) *DefaultScheduler {
	return &DefaultScheduler{topology: t, maxParallel: maxParallel}
}

// Batches implements the Scheduler interface.
func (s *DefaultScheduler) Batches(ctx context.Context) ([]Batch, error) {
	return ComputeBatches(ctx, s.topology, s.maxParallel)
}

// ComputeBatches layers the topology into batches of at most maxParallel
// nodes. A maxParallel below 1 is treated as 1.
func ComputeBatches(ctx context.Context, t Topology, maxParallel int) ([]Batch, error) {
	logger := ctxlog.FromContext(ctx)
	if maxParallel < 1 {
		maxParallel = 1
	}

	nodes := t.AllNodes(ctx)
	byID := make(map[string]*node.Node, len(nodes))
	inDegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
		inDegree[n.ID] = 0
	}

	successors := make(map[string][]string)
	outWeight := make(map[string]float64)
	for _, e := range t.Edges(ctx) {
		if _, ok := byID[e.From]; !ok {
			return nil, fmt.Errorf("%w: edge %s references unknown node '%s'", ErrSchedulingInconsistency, e, e.From)
		}
		if _, ok := byID[e.To]; !ok {
			return nil, fmt.Errorf("%w: edge %s references unknown node '%s'", ErrSchedulingInconsistency, e, e.To)
		}
		successors[e.From] = append(successors[e.From], e.To)
		outWeight[e.From] += e.Weight
		inDegree[e.To]++
	}

	remaining := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		remaining[n.ID] = true
	}

	var batches []Batch
	for len(remaining) > 0 {
		var ready []*node.Node
		for id := range remaining {
			if inDegree[id] == 0 {
				ready = append(ready, byID[id])
			}
		}
		if len(ready) == 0 {
			return nil, fmt.Errorf("%w: no ready nodes while %d remain (%s)", ErrSchedulingInconsistency, len(remaining), strings.Join(sortedIDs(remaining), ", "))
		}
		sort.Slice(ready, func(i, j int) bool {
			a, b := ready[i], ready[j]
			if a.Priority != b.Priority {
				return a.Priority < b.Priority
			}
			if outWeight[a.ID] != outWeight[b.ID] {
				return outWeight[a.ID] > outWeight[b.ID]
			}
			return a.ID < b.ID
		})

		var batch Batch
		for _, n := range ready {
			if len(batch) == maxParallel {
				break
			}
			if n.ParallelSafe {
				batch = append(batch, n.ID)
			}
		}
		if len(batch) == 0 {
			batch = Batch{ready[0].ID}
		}

		for _, id := range batch {
			delete(remaining, id)
			for _, succ := range successors[id] {
				inDegree[succ]--
			}
		}
		batches = append(batches, batch)
	}

	logger.Debug("Execution batches computed.", "batches", len(batches), "nodes", len(nodes), "max_parallel", maxParallel)
	return batches, nil
}

func sortedIDs(set map[string]bool) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
