// Package engine provides script-engine backends for the worker pool.
//
// Two backends are included:
//
//	GojaEngine   - embedded ECMAScript interpreter (dop251/goja)
//	WazeroEngine - WebAssembly modules (tetratelabs/wazero)
//
// Both follow the same execution contract: the pool worker installs
// request payloads into its transfer slot, the engine runs the script
// with the slot ids, and the script pulls arguments and publishes its
// result through callbacks.
//
// # Script Contract (goja)
//
// A goja script evaluates to a function taking the argument ids followed
// by the result id:
//
//	(function (specId, optsId, resultId) {
//	    const spec = JSON.parse(__getJsonArg(specId));
//	    const opts = JSON.parse(__getJsonArg(optsId));
//	    __setResult(resultId, JSON.stringify(render(spec, opts)));
//	})
//
// Arguments are single-read: a second __getJsonArg of the same id throws.
//
// # Guest Contract (wazero)
//
// A WebAssembly guest exports an entry function (default "run") taking the
// ids as i32 parameters, and imports the slot callbacks from the
// "transfer" namespace: arg-len, arg-read, result-write.
//
// # Thread Safety
//
// Factories are safe for concurrent use. Engine instances are NOT: each
// must stay on the worker goroutine that created it. The pool enforces
// this structurally; code using backends directly must do the same.
package engine
