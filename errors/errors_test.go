package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Formatting(t *testing.T) {
	err := &Error{
		Phase:  PhaseEngine,
		Kind:   KindExecution,
		Script: "render",
		Detail: "execute script",
		Cause:  fmt.Errorf("boom"),
	}

	msg := err.Error()
	for _, want := range []string{"[engine]", "execution", `"render"`, "execute script", "caused by: boom"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestError_FormattingMinimal(t *testing.T) {
	err := &Error{Phase: PhaseConfig, Kind: KindInvalidConfig}
	if got := err.Error(); got != "[config] invalid_config" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Spawn("initialize worker", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected errors.Is to reach the cause")
	}
}

func TestError_Is(t *testing.T) {
	a := WorkerDied("one")
	b := WorkerDied("another")
	if !stderrors.Is(a, b) {
		t.Fatal("same phase/kind should match")
	}

	c := Unavailable(nil)
	if stderrors.Is(a, c) {
		t.Fatal("different kind should not match")
	}
}

func TestBuilder(t *testing.T) {
	cause := fmt.Errorf("syntax error")
	err := New(PhaseEngine, KindExecution).
		Script("chart").
		Detail("compile %s", "chart").
		Cause(cause).
		Build()

	if err.Phase != PhaseEngine || err.Kind != KindExecution {
		t.Fatalf("unexpected phase/kind: %s/%s", err.Phase, err.Kind)
	}
	if err.Script != "chart" {
		t.Fatalf("Script = %q", err.Script)
	}
	if err.Detail != "compile chart" {
		t.Fatalf("Detail = %q", err.Detail)
	}
	if !stderrors.Is(err, cause) {
		t.Fatal("cause not attached")
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
		want bool
	}{
		{"invalid config", InvalidConfig("zero workers"), IsInvalidConfig, true},
		{"spawn", Spawn("worker", nil), IsSpawn, true},
		{"worker died", WorkerDied("gone"), IsWorkerDied, true},
		{"unavailable", Unavailable(WorkerDied("gone")), IsUnavailable, true},
		{"closed", Closed("pool"), IsClosed, true},
		{"fatal is fatal", Fatal("crash", nil), IsFatal, true},
		{"fatal is engine error", Fatal("crash", nil), IsEngineError, true},
		{"execution is engine error", Execution("bad input", nil), IsEngineError, true},
		{"execution is not fatal", Execution("bad input", nil), IsFatal, false},
		{"worker died is not unavailable", WorkerDied("gone"), IsUnavailable, false},
		{"plain error", fmt.Errorf("plain"), IsEngineError, false},
		{"nil", nil, IsFatal, false},
	}

	for _, tt := range tests {
		if got := tt.pred(tt.err); got != tt.want {
			t.Errorf("%s: predicate = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPredicates_SeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("request failed: %w", Fatal("crash", nil))
	if !IsFatal(err) {
		t.Fatal("IsFatal should unwrap")
	}
}

func TestTransferErrors(t *testing.T) {
	if got := ArgNotFound(7).Error(); !strings.Contains(got, "argument id 7") {
		t.Fatalf("ArgNotFound = %q", got)
	}
	if got := ResultNotFound(9).Error(); !strings.Contains(got, "result id 9") {
		t.Fatalf("ResultNotFound = %q", got)
	}
}
