// Package manager is the single entry point callers use to drive plugins. It
// composes the catalogue (registry), the instance lifecycle manager and the
// per-run session machinery, and adds the registration policy, discovery
// bookkeeping and the four role slots (asset, validation, logging, export).
//
// A run never shares a graph with another run: RunPipeline builds a fresh
// session, executes it with a node runner that loads and starts each plugin
// through the lifecycle manager, then tears down the instances the run
// created. Plugins that are already running under their own name, such as
// slot plugins, are reused instead of re-initialised.
package manager
