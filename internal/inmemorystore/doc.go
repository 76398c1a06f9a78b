// Package inmemorystore provides a thread-safe, in-memory implementation
// of the nodestore.Store interface. It is suitable for single-process runs
// where node state does not need to outlive the run.
package inmemorystore
