// Package executor defines the contract for running a scheduled pipeline: the
// run configuration, the unit of work each node executes, the report a run
// produces and the observer hooks notified along the way.
//
// The in-process implementation lives in package localexecutor.
package executor
