// Package graph provides the dependency resolver and a unified interface over
// the per-run execution graph.
//
// # Why Graph Package Exists
//
// The Graph interface is a facade that combines topology (structure) and node
// state (execution) into a single API, so the scheduler and executor do not
// coordinate topologystore and nodestore themselves.
//
// # Responsibilities
//
//   - Resolver: BuildGraph creates one node per descriptor, and
//     ResolveDeclaredDependencies turns declared dependency names into edges.
//     Unknown names are hard errors.
//   - Guarding: every AddEdge is checked for cycles before it mutates the
//     topology, so no global re-validation is needed after construction.
//   - Validation: Validate re-checks acyclicity, enforces the required-role
//     predicate (by default at least one Input node) and reports nodes that
//     no Input node can reach as a non-fatal diagnostic.
//   - State: Mark* methods record per-node outcomes in the node store.
//
// # Lifecycle
//
//  1. Created by the session factory with fresh stores injected.
//  2. Populated while the pipeline is assembled.
//  3. Read-only structurally while the run executes.
//  4. Discarded when the session ends.
package graph
