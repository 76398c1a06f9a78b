// Package app wires the orchestration core into a runnable application: it
// loads configuration, registers the compiled-in plugin modules, discovers
// manifest plugins, fills the role slots and exposes the health and metrics
// endpoints. The cli package drives it.
package app
