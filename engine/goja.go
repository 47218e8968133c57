package engine

import (
	"context"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	scriptruntime "github.com/vegaviz/script-runtime"
	"github.com/vegaviz/script-runtime/errors"
	"github.com/vegaviz/script-runtime/transfer"
)

const defaultMaxCallStackSize = 2048

// GojaConfig holds configuration for goja engine creation
type GojaConfig struct {
	// MaxCallStackSize bounds script recursion depth.
	// 0 means the default (2048 frames).
	MaxCallStackSize int
}

// GojaFactory creates goja-backed ECMAScript engines. goja interpreters
// are pure Go and keep no process-global state, so InitPlatform has
// nothing to do; the factory still participates in the pool's init guard
// so the ordering contract holds uniformly across backends.
type GojaFactory struct {
	cfg GojaConfig
}

// NewGojaFactory creates a factory with default configuration.
func NewGojaFactory() *GojaFactory {
	return NewGojaFactoryWithConfig(GojaConfig{})
}

// NewGojaFactoryWithConfig creates a factory with custom configuration.
func NewGojaFactoryWithConfig(cfg GojaConfig) *GojaFactory {
	return &GojaFactory{cfg: cfg}
}

// InitPlatform implements scriptruntime.EngineFactory. No-op: goja has no
// shared platform state to initialize.
func (f *GojaFactory) InitPlatform() {}

// New constructs one interpreter instance wired to the worker's slot.
// The returned engine must only ever be used from the calling goroutine.
func (f *GojaFactory) New(_ context.Context, slot *transfer.Slot) (scriptruntime.Engine, error) {
	rt := goja.New()

	maxStack := f.cfg.MaxCallStackSize
	if maxStack <= 0 {
		maxStack = defaultMaxCallStackSize
	}
	rt.SetMaxCallStackSize(maxStack)

	e := &GojaEngine{
		rt:       rt,
		slot:     slot,
		programs: make(map[string]*goja.Program),
	}

	// Pull/push callbacks the scripts use to exchange payloads with the
	// worker's slot. Returned errors surface as thrown JS exceptions.
	if err := rt.Set("__getJsonArg", e.getJSONArg); err != nil {
		return nil, errors.Spawn("register __getJsonArg", err)
	}
	if err := rt.Set("__setResult", e.setResult); err != nil {
		return nil, errors.Spawn("register __setResult", err)
	}

	return e, nil
}

// GojaEngine executes scripts against one goja interpreter. A script is
// expected to evaluate to a function taking the argument ids in order
// followed by the result id; it pulls each argument with
// __getJsonArg(id) and publishes its result with __setResult(id, data).
//
// Not safe for concurrent use.
type GojaEngine struct {
	rt       *goja.Runtime
	slot     *transfer.Slot
	programs map[string]*goja.Program
}

func (e *GojaEngine) getJSONArg(id int32) (string, error) {
	payload, err := e.slot.ConsumeArg(transfer.ID(id))
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func (e *GojaEngine) setResult(id int32, data []byte) {
	e.slot.PutResult(transfer.ID(id), data)
}

func (e *GojaEngine) program(ref scriptruntime.ScriptRef) (*goja.Program, error) {
	if prog, ok := e.programs[ref.Name]; ok {
		return prog, nil
	}
	prog, err := goja.Compile(ref.Name, ref.Source, true)
	if err != nil {
		return nil, errors.New(errors.PhaseEngine, errors.KindExecution).
			Script(ref.Name).
			Detail("compile script").
			Cause(err).
			Build()
	}
	if ref.Name != "" {
		e.programs[ref.Name] = prog
		Logger().Debug("compiled script", zap.String("script", ref.Name))
	}
	return prog, nil
}

// Execute implements scriptruntime.Engine.
func (e *GojaEngine) Execute(ctx context.Context, ref scriptruntime.ScriptRef, call scriptruntime.Call) error {
	if ref.Source == "" {
		return errors.New(errors.PhaseEngine, errors.KindExecution).
			Script(ref.Name).
			Detail("script has no source").
			Build()
	}

	prog, err := e.program(ref)
	if err != nil {
		return err
	}

	// Interrupt the interpreter if the caller's context ends mid-run.
	watch := make(chan struct{})
	defer func() {
		close(watch)
		e.rt.ClearInterrupt()
	}()
	go func() {
		select {
		case <-ctx.Done():
			e.rt.Interrupt(ctx.Err())
		case <-watch:
		}
	}()

	entryVal, err := e.rt.RunProgram(prog)
	if err != nil {
		return errors.New(errors.PhaseEngine, errors.KindExecution).
			Script(ref.Name).
			Detail("evaluate script").
			Cause(err).
			Build()
	}
	entry, ok := goja.AssertFunction(entryVal)
	if !ok {
		return errors.New(errors.PhaseEngine, errors.KindExecution).
			Script(ref.Name).
			Detail("script did not evaluate to a function").
			Build()
	}

	args := make([]goja.Value, 0, len(call.ArgIDs)+1)
	for _, id := range call.ArgIDs {
		args = append(args, e.rt.ToValue(int32(id)))
	}
	args = append(args, e.rt.ToValue(int32(call.ResultID)))

	if _, err := entry(goja.Undefined(), args...); err != nil {
		return errors.New(errors.PhaseEngine, errors.KindExecution).
			Script(ref.Name).
			Detail("execute script").
			Cause(err).
			Build()
	}
	return nil
}

// Close implements scriptruntime.Engine.
func (e *GojaEngine) Close(_ context.Context) error {
	e.programs = nil
	return nil
}
