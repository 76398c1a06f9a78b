package graph

import (
	"context"
	"fmt"

	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/node"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
)

// DefaultEdgeWeight is the weight given to edges derived from declared
// dependencies.
const DefaultEdgeWeight = 1.0

// BuildGraph creates one node per descriptor and adds no edges. Roles are
// inferred from capability tags, defaulting to Processing.
func BuildGraph(ctx context.Context, g Graph, descriptors []plugin.Descriptor) error {
	for _, d := range descriptors {
		n, err := node.FromDescriptor(d)
		if err != nil {
			return err
		}
		if err := g.AddNode(ctx, n); err != nil {
			return fmt.Errorf("failed to add plugin '%s' to graph: %w", d.Name, err)
		}
	}
	ctxlog.FromContext(ctx).Debug("Graph nodes built from descriptors.", "count", len(descriptors))
	return nil
}

// ResolveDeclaredDependencies adds an edge dependency -> descriptor for every
// declared dependency. A name that is not a node of the graph fails with
// ErrMissingDependency before any edge for that descriptor is added.
func ResolveDeclaredDependencies(ctx context.Context, g Graph, descriptors []plugin.Descriptor) error {
	logger := ctxlog.FromContext(ctx)
	edges := 0
	for _, d := range descriptors {
		for _, dep := range d.Dependencies {
			if _, ok := g.Node(ctx, dep); !ok {
				return fmt.Errorf("%w: plugin '%s' depends on '%s' which is not in the pipeline", ErrMissingDependency, d.Name, dep)
			}
		}
		for _, dep := range d.Dependencies {
			if err := g.AddEdge(ctx, dep, d.Name, DefaultEdgeWeight); err != nil {
				return fmt.Errorf("failed to resolve dependency '%s' of plugin '%s': %w", dep, d.Name, err)
			}
			edges++
		}
	}
	logger.Debug("Declared dependencies resolved.", "edges", edges)
	return nil
}

// Assemble runs BuildGraph followed by ResolveDeclaredDependencies.
func Assemble(ctx context.Context, g Graph, descriptors []plugin.Descriptor) error {
	if err := BuildGraph(ctx, g, descriptors); err != nil {
		return err
	}
	return ResolveDeclaredDependencies(ctx, g, descriptors)
}
