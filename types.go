package scriptruntime

import (
	"context"

	"github.com/vegaviz/script-runtime/transfer"
)

// ScriptRef identifies an executable script. Name is the engine's cache
// key: a backend compiles a given name once per engine instance and reuses
// the compiled form for subsequent requests. Source carries script text
// for interpreter backends; Binary and Entry carry a compiled module and
// its exported entry point for WebAssembly backends.
type ScriptRef struct {
	Name   string
	Source string
	Binary []byte
	Entry  string
}

// Call carries the transfer-slot bindings for one execution: the ids of
// the installed arguments, in order, and the id the script must publish
// its result under.
type Call struct {
	ArgIDs   []transfer.ID
	ResultID transfer.ID
}

// Output is the result payload of one request.
type Output struct {
	Data []byte
}

// Engine is a single script-engine instance. Instances are stateful,
// expensive to construct, and NOT safe for concurrent use; the pool keeps
// each instance on one dedicated worker and serializes all Execute calls.
//
// Execute runs the referenced script against the call's slot bindings.
// The returned error is local to the request unless it is fatal
// (errors.IsFatal), in which case the hosting worker shuts down.
type Engine interface {
	Execute(ctx context.Context, ref ScriptRef, call Call) error
	Close(ctx context.Context) error
}

// EngineFactory constructs engines for pool workers.
//
// InitPlatform performs the engine runtime's one-time, process-wide setup.
// The pool guarantees it runs at most once per factory, on the goroutine
// that spawns every worker, strictly before the first worker is created.
// Runtimes whose platform state is inherited at thread creation (V8-style
// JIT page permissions) depend on exactly this ordering. It is assumed
// infallible; a factory that cannot initialize its platform must abort
// rather than continue.
//
// New is called once per worker, on the worker's own thread, and receives
// the worker's transfer slot for wiring pull/push callbacks. Factories
// must be comparable (use pointer receivers); the pool keys its init
// guards by factory identity.
type EngineFactory interface {
	InitPlatform()
	New(ctx context.Context, slot *transfer.Slot) (Engine, error)
}
