// Package inmemorytopology provides a thread-safe, in-memory implementation
// of the topologystore.Store interface. It is designed for plugin graphs that
// fit comfortably in memory and live for a single run.
package inmemorytopology
