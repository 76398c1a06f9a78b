// Package plugin defines the contract every processing unit implements so the
// orchestration core can discover, sequence and run it without knowing what
// it computes.
//
// A plugin exposes a static Descriptor and three lifecycle methods. Everything
// domain specific (parsing a campaign, exporting it, fetching an asset) lives
// behind the role interfaces in roles.go and is invoked by callers of the
// manager, never by the scheduler.
//
// All methods that may block take a context.Context. Implementations must
// watch ctx.Done(): per-node timeouts and whole-run aborts are delivered only
// through the context, the engine never kills a running unit.
package plugin
