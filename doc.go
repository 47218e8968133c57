// Package scriptruntime provides concurrent execution over embedded,
// single-threaded script engines.
//
// An embedded interpreter instance (ECMAScript via goja, WebAssembly via
// wazero) is stateful, expensive to construct, and not safe to share
// across goroutines. This library runs a fixed set of long-lived engine
// instances, one per dedicated OS thread, and dispatches execution
// requests to them round robin with bounded-queue backpressure and
// transparent recovery from worker death.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	script-runtime/      Root package with the Engine and EngineFactory contracts
//	├── pool/            Worker pool: dispatch, lifecycle, reset and retry
//	├── engine/          Engine backends (goja, wazero)
//	├── transfer/        Worker-local transfer slots for large payloads
//	└── errors/          Structured error types for classification
//
// # Quick Start
//
// Run scripts against a pool of goja engines:
//
//	h, err := pool.New(pool.Config{
//	    Workers: 4,
//	    Factory: engine.NewGojaFactory(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close()
//
//	out, err := h.Request(ctx, scriptruntime.ScriptRef{
//	    Name:   "double",
//	    Source: src,
//	}, arg)
//	fmt.Println(string(out.Data))
//
// # Thread Safety
//
// Handle is safe for concurrent use and cheap to clone; clones share one
// pool and one worker set. Engine instances are NOT thread-safe and are
// never exposed outside their owning worker; all access goes through
// Request.
//
// # Transfer Slots
//
// Large payloads are not copied through the dispatch channel. The worker
// installs them into a worker-local transfer slot keyed by request-scoped
// identifiers; the engine pulls arguments and publishes results through
// callbacks against that slot. Scope guards remove every entry when the
// request finishes, on all exit paths.
package scriptruntime
