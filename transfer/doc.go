// Package transfer implements worker-local, request-scoped payload slots.
//
// Script engines pull large arguments and push results through callbacks
// ("give me argument N", "store result bytes for id X") rather than
// receiving them as plain call parameters. Each worker owns one Slot; the
// worker installs payloads immediately before invoking the engine and the
// engine's callbacks resolve ids against that slot only.
//
// Entries are scope-bound. InstallArg and ReserveResult return guards whose
// Release the worker defers at submission time, so an entry is removed when
// the engine call returns, errors, or panics. No entry is ever observable
// from another worker, and no entry survives the request that created it.
package transfer
