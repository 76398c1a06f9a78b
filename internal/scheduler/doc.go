// Package scheduler turns a validated dependency graph into an ordered list
// of execution batches.
//
// # How It Works
//
// Batches are computed with Kahn's algorithm, layered and capped:
//  1. Count incoming edges per node.
//  2. While nodes remain, collect the zero in-degree "ready set", ordered by
//     priority (lower first), then by summed outgoing edge weight (heavier
//     first), then by id.
//  3. Take parallel-safe ready nodes up to maxParallel. If none of them is
//     parallel-safe, take exactly one ready node so progress is guaranteed.
//  4. Remove the batch and decrement the in-degree of its successors.
//
// A node in batch k has every predecessor in a batch before k. Nothing is
// promised about the order of nodes inside one batch.
//
// An empty ready set while nodes remain means a cycle slipped past the graph's
// insertion guard. That is reported as ErrSchedulingInconsistency and is
// always fatal.
package scheduler
