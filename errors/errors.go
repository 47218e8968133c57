package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in the request lifecycle the error occurred
type Phase string

const (
	PhaseConfig   Phase = "config"   // pool construction
	PhaseSpawn    Phase = "spawn"    // worker startup
	PhaseDispatch Phase = "dispatch" // routing and queueing
	PhaseEngine   Phase = "engine"   // script execution
	PhaseTransfer Phase = "transfer" // slot access
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidConfig Kind = "invalid_config"
	KindStartup       Kind = "startup"
	KindWorkerDied    Kind = "worker_died"
	KindUnavailable   Kind = "unavailable"
	KindClosed        Kind = "closed"
	KindExecution     Kind = "execution"
	KindFatal         Kind = "fatal"
	KindNotFound      Kind = "not_found"
)

// Error is the structured error type used throughout the library
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Script string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Script != "" {
		b.WriteString(" in script ")
		b.WriteString(fmt.Sprintf("%q", e.Script))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Script sets the script name the error relates to
func (b *Builder) Script(name string) *Builder {
	b.err.Script = name
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidConfig creates a construction-parameter error
func InvalidConfig(detail string) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindInvalidConfig,
		Detail: detail,
	}
}

// Spawn creates a worker startup error
func Spawn(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseSpawn,
		Kind:   KindStartup,
		Detail: detail,
		Cause:  cause,
	}
}

// WorkerDied creates the internal dead-worker error. It is never surfaced
// to callers directly; the dispatcher converts it into a reset-and-retry,
// and only a double failure escalates as Unavailable.
func WorkerDied(detail string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindWorkerDied,
		Detail: detail,
	}
}

// Unavailable creates the systemic-fault error returned when both the
// original dispatch and the post-reset retry failed
func Unavailable(cause error) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindUnavailable,
		Detail: "worker pool unavailable after reset and retry",
		Cause:  cause,
	}
}

// Closed creates an error for operations on a torn-down pool
func Closed(what string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// Execution creates a script-engine failure local to one request
func Execution(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseEngine,
		Kind:   KindExecution,
		Detail: detail,
		Cause:  cause,
	}
}

// Fatal creates an engine fault the hosting worker cannot recover from.
// The worker that observes it shuts down; the next request routed to it
// triggers a pool reset.
func Fatal(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseEngine,
		Kind:   KindFatal,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// ArgNotFound reports a transfer-slot argument id with no pending entry
func ArgNotFound(id int32) *Error {
	return &Error{
		Phase:  PhaseTransfer,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("argument id %d not found", id),
	}
}

// ResultNotFound reports a result id the script never published to
func ResultNotFound(id int32) *Error {
	return &Error{
		Phase:  PhaseTransfer,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("result id %d not published", id),
	}
}

// Predicates used by the dispatch and retry policy

func is(err error, phase Phase, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Phase == phase && e.Kind == kind
}

// IsInvalidConfig reports whether err is a construction-parameter error
func IsInvalidConfig(err error) bool {
	return is(err, PhaseConfig, KindInvalidConfig)
}

// IsSpawn reports whether err is a worker startup error
func IsSpawn(err error) bool {
	return is(err, PhaseSpawn, KindStartup)
}

// IsWorkerDied reports whether err is the internal dead-worker signal
func IsWorkerDied(err error) bool {
	return is(err, PhaseDispatch, KindWorkerDied)
}

// IsUnavailable reports whether err is the post-retry systemic fault
func IsUnavailable(err error) bool {
	return is(err, PhaseDispatch, KindUnavailable)
}

// IsClosed reports whether err came from a torn-down pool
func IsClosed(err error) bool {
	return is(err, PhaseDispatch, KindClosed)
}

// IsFatal reports whether err is an unrecoverable engine fault
func IsFatal(err error) bool {
	return is(err, PhaseEngine, KindFatal)
}

// IsEngineError reports whether err came from script execution itself,
// fatal or not
func IsEngineError(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Phase == PhaseEngine
}
