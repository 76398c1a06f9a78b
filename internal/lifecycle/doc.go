// Package lifecycle tracks plugin instances through their lifecycle:
//
//	Registered --Load--> Loaded --Start--> Running
//	Running --Stop--> Loaded --Unload--> Registered
//	any failed Load --> Failed (terminal)
//
// Every transition on one instance is serialised by a per-instance mutex, so
// concurrent callers racing on the same id see exactly one winner; the others
// get a *TransitionError and the state is left unchanged.
//
// Teardown always calls Cleanup once, including for instances whose
// initialisation failed or never happened. Unload already cleans up, so a
// teardown after Unload does not repeat it.
package lifecycle
