package engine

import (
	"context"
	"errors"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	scriptruntime "github.com/vegaviz/script-runtime"
	runtimeerrors "github.com/vegaviz/script-runtime/errors"
	"github.com/vegaviz/script-runtime/transfer"
)

// hostModule is the import namespace guests use for slot callbacks.
const hostModule = "transfer"

// WazeroConfig holds configuration for wazero engine creation
type WazeroConfig struct {
	// MemoryLimitPages sets the maximum memory per instance in pages
	// (64KB each). 0 means the wazero default.
	MemoryLimitPages uint32
}

// WazeroFactory creates WebAssembly engines backed by wazero. Each engine
// owns its own wazero runtime, so instances never share module state.
type WazeroFactory struct {
	cfg WazeroConfig
}

// NewWazeroFactory creates a factory with default configuration.
func NewWazeroFactory() *WazeroFactory {
	return NewWazeroFactoryWithConfig(WazeroConfig{})
}

// NewWazeroFactoryWithConfig creates a factory with custom configuration.
func NewWazeroFactoryWithConfig(cfg WazeroConfig) *WazeroFactory {
	return &WazeroFactory{cfg: cfg}
}

// InitPlatform implements scriptruntime.EngineFactory. No-op: wazero keeps
// no process-global runtime state.
func (f *WazeroFactory) InitPlatform() {}

// New constructs one WebAssembly engine wired to the worker's slot.
func (f *WazeroFactory) New(ctx context.Context, slot *transfer.Slot) (scriptruntime.Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if f.cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(f.cfg.MemoryLimitPages)
	}

	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	e := &WazeroEngine{
		runtime: r,
		slot:    slot,
		modules: make(map[string]api.Module),
	}

	// Slot callbacks exposed to guests:
	//
	//	arg-len(id) -> i32       size of a pending argument, -1 if absent
	//	arg-read(id, ptr) -> i32 copy + consume an argument, -1 on failure
	//	result-write(id, ptr, len) -> i32
	_, err := r.NewHostModuleBuilder(hostModule).
		NewFunctionBuilder().WithFunc(e.argLen).Export("arg-len").
		NewFunctionBuilder().WithFunc(e.argRead).Export("arg-read").
		NewFunctionBuilder().WithFunc(e.resultWrite).Export("result-write").
		Instantiate(ctx)
	if err != nil {
		_ = r.Close(ctx)
		return nil, runtimeerrors.Spawn("instantiate transfer host module", err)
	}

	return e, nil
}

// WazeroEngine executes compiled WebAssembly modules. A script's Binary is
// instantiated once per engine under its Name and reused; the exported
// Entry function (default "run") is invoked with the argument ids in
// order followed by the result id, all i32.
//
// Not safe for concurrent use.
type WazeroEngine struct {
	runtime wazero.Runtime
	slot    *transfer.Slot
	modules map[string]api.Module
}

func (e *WazeroEngine) argLen(_ context.Context, _ api.Module, id int32) int32 {
	n, ok := e.slot.ArgLen(transfer.ID(id))
	if !ok {
		return -1
	}
	return int32(n)
}

func (e *WazeroEngine) argRead(_ context.Context, m api.Module, id int32, ptr uint32) int32 {
	payload, err := e.slot.ConsumeArg(transfer.ID(id))
	if err != nil {
		return -1
	}
	if !m.Memory().Write(ptr, payload) {
		return -1
	}
	return int32(len(payload))
}

func (e *WazeroEngine) resultWrite(_ context.Context, m api.Module, id int32, ptr, size uint32) int32 {
	view, ok := m.Memory().Read(ptr, size)
	if !ok {
		return -1
	}
	// The view aliases guest memory; copy before the guest can touch it.
	data := make([]byte, len(view))
	copy(data, view)
	e.slot.PutResult(transfer.ID(id), data)
	return 0
}

func (e *WazeroEngine) module(ctx context.Context, ref scriptruntime.ScriptRef) (api.Module, error) {
	if mod, ok := e.modules[ref.Name]; ok {
		return mod, nil
	}
	mod, err := e.runtime.InstantiateWithConfig(ctx, ref.Binary,
		wazero.NewModuleConfig().WithName(ref.Name))
	if err != nil {
		return nil, runtimeerrors.New(runtimeerrors.PhaseEngine, runtimeerrors.KindExecution).
			Script(ref.Name).
			Detail("instantiate module").
			Cause(err).
			Build()
	}
	if ref.Name != "" {
		e.modules[ref.Name] = mod
		Logger().Debug("instantiated module", zap.String("script", ref.Name))
	}
	return mod, nil
}

// Execute implements scriptruntime.Engine.
func (e *WazeroEngine) Execute(ctx context.Context, ref scriptruntime.ScriptRef, call scriptruntime.Call) error {
	if len(ref.Binary) == 0 {
		return runtimeerrors.New(runtimeerrors.PhaseEngine, runtimeerrors.KindExecution).
			Script(ref.Name).
			Detail("script has no module binary").
			Build()
	}

	mod, err := e.module(ctx, ref)
	if err != nil {
		return err
	}

	entry := ref.Entry
	if entry == "" {
		entry = "run"
	}
	fn := mod.ExportedFunction(entry)
	if fn == nil {
		return runtimeerrors.NotFound(runtimeerrors.PhaseEngine, "exported function", entry)
	}

	params := make([]uint64, 0, len(call.ArgIDs)+1)
	for _, id := range call.ArgIDs {
		params = append(params, api.EncodeI32(int32(id)))
	}
	params = append(params, api.EncodeI32(int32(call.ResultID)))

	if _, err := fn.Call(ctx, params...); err != nil {
		// A guest exit tears down the module instance; the engine cannot
		// serve further requests against it.
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			delete(e.modules, ref.Name)
			return runtimeerrors.Fatal("module instance exited", err)
		}
		return runtimeerrors.New(runtimeerrors.PhaseEngine, runtimeerrors.KindExecution).
			Script(ref.Name).
			Detail("call %s", entry).
			Cause(err).
			Build()
	}
	return nil
}

// Close implements scriptruntime.Engine.
func (e *WazeroEngine) Close(ctx context.Context) error {
	e.modules = nil
	return e.runtime.Close(ctx)
}
