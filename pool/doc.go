// Package pool runs a fixed set of single-threaded script-engine workers
// and dispatches execution requests to them.
//
// # Model
//
// Engine instances are stateful, crash-prone, and bound to one thread for
// life: they cannot be shared, and in-flight work cannot migrate between
// them. Each worker therefore owns exactly one engine on one locked OS
// thread and serves its bounded command queue strictly in order. The
// dispatcher routes requests round robin over the workers; a full queue
// blocks the sender instead of buffering without bound.
//
// # Lifecycle
//
// Workers spawn lazily on the first request (or eagerly via WarmUp).
// Before the first worker ever starts, the pool runs the factory's
// one-time platform initialization from the spawning goroutine; some
// engine runtimes inherit platform state at thread creation and corrupt
// memory if workers predate it. The spawn path is the only place worker
// goroutines are created, which makes the ordering a structural property
// of the pool rather than caller discipline.
//
// # Failure and recovery
//
// An engine failure on one request is returned to that caller and leaves
// the worker healthy. A fatal engine fault kills the worker; the next
// request routed to it finds it dead, resets the entire pool (all
// workers are torn down and a fresh set spawned) and retries once
// against the new workers. Concurrent discoveries of the same dead worker
// collapse into one reset. If the retry also fails, the request surfaces
// an unavailable error and the fault is considered systemic.
//
// A reset replaces every worker, not just the dead one: an engine crash
// may have corrupted process-wide interpreter state, so the surviving
// workers cannot be trusted either.
//
// # Ordering
//
// Within one worker, commands execute in the order their sends completed.
// Across workers there is no ordering. A request's target worker is fixed
// at enqueue time; only the death-triggered retry re-enters round robin,
// starting the request over against the fresh pool.
//
// The pool imposes no timeouts. Callers needing bounded latency pass a
// context with a deadline to Request and must treat expiry as "result
// unknown": the underlying command still completes on its worker.
package pool
