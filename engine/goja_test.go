package engine

import (
	"context"
	"testing"
	"time"

	scriptruntime "github.com/vegaviz/script-runtime"
	"github.com/vegaviz/script-runtime/errors"
	"github.com/vegaviz/script-runtime/transfer"
)

func newGojaEngine(t *testing.T) (scriptruntime.Engine, *transfer.Slot) {
	t.Helper()
	slot := transfer.NewSlot()
	eng, err := NewGojaFactory().New(context.Background(), slot)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close(context.Background()) })
	return eng, slot
}

func TestGojaEngine_Execute(t *testing.T) {
	eng, slot := newGojaEngine(t)

	argID := slot.PutArg([]byte(`{"value":21}`))
	resultID := slot.AllocResult()

	ref := scriptruntime.ScriptRef{
		Name: "double",
		Source: `(function (specId, resultId) {
			const spec = JSON.parse(__getJsonArg(specId));
			__setResult(resultId, JSON.stringify(spec.value * 2));
		})`,
	}
	call := scriptruntime.Call{ArgIDs: []transfer.ID{argID}, ResultID: resultID}

	if err := eng.Execute(context.Background(), ref, call); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, err := slot.TakeResult(resultID)
	if err != nil {
		t.Fatalf("TakeResult: %v", err)
	}
	if string(data) != "42" {
		t.Fatalf("result = %q, want 42", data)
	}
	if slot.Len() != 0 {
		t.Fatalf("slot holds %d entries after execution", slot.Len())
	}
}

func TestGojaEngine_MultipleArguments(t *testing.T) {
	eng, slot := newGojaEngine(t)

	a := slot.PutArg([]byte(`"left"`))
	b := slot.PutArg([]byte(`"right"`))
	resultID := slot.AllocResult()

	ref := scriptruntime.ScriptRef{
		Name: "join",
		Source: `(function (aId, bId, resultId) {
			const left = JSON.parse(__getJsonArg(aId));
			const right = JSON.parse(__getJsonArg(bId));
			__setResult(resultId, left + "|" + right);
		})`,
	}
	call := scriptruntime.Call{ArgIDs: []transfer.ID{a, b}, ResultID: resultID}

	if err := eng.Execute(context.Background(), ref, call); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	data, err := slot.TakeResult(resultID)
	if err != nil {
		t.Fatalf("TakeResult: %v", err)
	}
	if string(data) != "left|right" {
		t.Fatalf("result = %q", data)
	}
}

func TestGojaEngine_ThrownErrorIsEngineError(t *testing.T) {
	eng, slot := newGojaEngine(t)

	ref := scriptruntime.ScriptRef{
		Name:   "thrower",
		Source: `(function (resultId) { throw new Error("bad spec"); })`,
	}
	err := eng.Execute(context.Background(), ref, scriptruntime.Call{ResultID: slot.AllocResult()})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsEngineError(err) {
		t.Fatalf("not an engine error: %v", err)
	}
	if errors.IsFatal(err) {
		t.Fatalf("a thrown exception must not be fatal: %v", err)
	}
}

func TestGojaEngine_CompileError(t *testing.T) {
	eng, slot := newGojaEngine(t)

	ref := scriptruntime.ScriptRef{Name: "broken", Source: `(function (`}
	err := eng.Execute(context.Background(), ref, scriptruntime.Call{ResultID: slot.AllocResult()})
	if err == nil {
		t.Fatal("expected compile error")
	}
	if !errors.IsEngineError(err) {
		t.Fatalf("not an engine error: %v", err)
	}
}

func TestGojaEngine_NotAFunction(t *testing.T) {
	eng, slot := newGojaEngine(t)

	ref := scriptruntime.ScriptRef{Name: "value", Source: `42`}
	err := eng.Execute(context.Background(), ref, scriptruntime.Call{ResultID: slot.AllocResult()})
	if err == nil {
		t.Fatal("expected error for non-function script")
	}
}

func TestGojaEngine_EmptySource(t *testing.T) {
	eng, slot := newGojaEngine(t)

	err := eng.Execute(context.Background(), scriptruntime.ScriptRef{Name: "empty"},
		scriptruntime.Call{ResultID: slot.AllocResult()})
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestGojaEngine_ProgramCachedByName(t *testing.T) {
	eng, slot := newGojaEngine(t)

	run := func(source string) string {
		t.Helper()
		resultID := slot.AllocResult()
		ref := scriptruntime.ScriptRef{Name: "cached", Source: source}
		if err := eng.Execute(context.Background(), ref, scriptruntime.Call{ResultID: resultID}); err != nil {
			t.Fatalf("Execute: %v", err)
		}
		data, err := slot.TakeResult(resultID)
		if err != nil {
			t.Fatalf("TakeResult: %v", err)
		}
		return string(data)
	}

	if got := run(`(function (resultId) { __setResult(resultId, "first"); })`); got != "first" {
		t.Fatalf("first run = %q", got)
	}
	// same name, different source: the cached program wins
	if got := run(`(function (resultId) { __setResult(resultId, "second"); })`); got != "first" {
		t.Fatalf("second run = %q, want cached program output", got)
	}
}

func TestGojaEngine_ArgumentConsumedOnce(t *testing.T) {
	eng, slot := newGojaEngine(t)

	argID := slot.PutArg([]byte(`1`))
	resultID := slot.AllocResult()

	ref := scriptruntime.ScriptRef{
		Name: "doubleread",
		Source: `(function (argId, resultId) {
			__getJsonArg(argId);
			__getJsonArg(argId);
		})`,
	}
	err := eng.Execute(context.Background(), ref,
		scriptruntime.Call{ArgIDs: []transfer.ID{argID}, ResultID: resultID})
	if err == nil {
		t.Fatal("second read of the same argument should fail")
	}
}

func TestGojaEngine_ContextInterruptsExecution(t *testing.T) {
	eng, slot := newGojaEngine(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	ref := scriptruntime.ScriptRef{
		Name:   "spinner",
		Source: `(function (resultId) { for (;;) {} })`,
	}
	start := time.Now()
	err := eng.Execute(ctx, ref, scriptruntime.Call{ResultID: slot.AllocResult()})
	if err == nil {
		t.Fatal("expected interruption error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("interrupt took %v", elapsed)
	}
}
