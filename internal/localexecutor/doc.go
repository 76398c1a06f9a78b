// Package localexecutor runs scheduled batches in-process.
//
// Batches execute strictly in order. Members of one batch run concurrently on
// an errgroup limited to Config.MaxParallel. Before a node runs, the statuses
// of its dependencies are checked: if any of them failed or was skipped the
// node is marked Skipped without being attempted.
//
// Each node gets its own context derived from the run context. The per-node
// timeout cancels only that node's context; cancelling the run context
// reaches every in-flight node and prevents later batches from starting.
package localexecutor
