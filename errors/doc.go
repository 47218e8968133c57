// Package errors provides structured error types for the script runtime.
//
// Errors carry a Phase (where in the request lifecycle the failure
// happened) and a Kind (what went wrong), so the dispatcher's retry policy
// and callers can classify failures without string matching:
//
//	err := pool.Request(ctx, script, args...)
//	switch {
//	case errors.IsEngineError(err):
//	    // the script itself failed; retrying the same input will fail again
//	case errors.IsUnavailable(err):
//	    // systemic pool fault, fatal for this request
//	}
//
// Engine-phase errors are always local to one request and never retried by
// the pool. Dispatch-phase worker_died errors are internal: the pool
// converts them into a single reset-and-retry, surfacing unavailable only
// when the retry also fails.
package errors
