package pool

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	scriptruntime "github.com/vegaviz/script-runtime"
	"github.com/vegaviz/script-runtime/errors"
	"github.com/vegaviz/script-runtime/transfer"
)

// command is one unit of dispatched work plus its completion channel.
// A command is delivered to exactly one worker and completed exactly once,
// with a result or an error, even across a reset and retry.
type command struct {
	id     uuid.UUID
	script scriptruntime.ScriptRef
	args   [][]byte
	resp   chan result
	once   sync.Once
}

type result struct {
	out scriptruntime.Output
	err error
}

func newCommand(script scriptruntime.ScriptRef, args [][]byte) *command {
	return &command{
		id:     uuid.New(),
		script: script,
		args:   args,
		resp:   make(chan result, 1),
	}
}

// complete delivers the command's single completion; later calls are
// ignored.
func (c *command) complete(out scriptruntime.Output, err error) {
	c.once.Do(func() {
		c.resp <- result{out: out, err: err}
	})
}

// worker owns one engine instance on one locked OS thread, plus the
// bounded inbound command queue the dispatcher sends into.
type worker struct {
	index    int
	cmds     chan *command
	stop     chan struct{} // closed when the worker's generation is retired
	dead     chan struct{} // closed when the engine can no longer serve
	done     chan struct{} // closed when the goroutine has exited
	deadOnce sync.Once
}

func newWorker(index, capacity int) *worker {
	return &worker{
		index: index,
		cmds:  make(chan *command, capacity),
		stop:  make(chan struct{}),
		dead:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (w *worker) markDead() {
	w.deadOnce.Do(func() {
		close(w.dead)
	})
}

// run is the worker body: Starting (engine construction and handshake),
// Ready (FIFO command loop), Draining (answer for whatever is still
// queued), Stopped.
func (w *worker) run(factory scriptruntime.EngineFactory, handshake chan<- error) {
	// The engine lives and dies on this thread. The lock is never undone,
	// so the thread is discarded together with whatever state a faulted
	// engine left behind on it.
	runtime.LockOSThread()

	defer close(w.done)

	slot := transfer.NewSlot()
	eng, err := factory.New(context.Background(), slot)
	if err != nil {
		w.markDead()
		handshake <- err
		return
	}
	handshake <- nil

	for {
		select {
		case cmd := <-w.cmds:
			out, err := w.execute(eng, slot, cmd)
			cmd.complete(out, err)
			if errors.IsFatal(err) {
				Logger().Warn("worker engine fault",
					zap.Int("worker", w.index),
					zap.String("request", cmd.id.String()),
					zap.Error(err))
				w.markDead()
				_ = eng.Close(context.Background())
				w.drainUntilStopped()
				return
			}
		case <-w.stop:
			w.markDead()
			_ = eng.Close(context.Background())
			w.failQueued()
			return
		}
	}
}

// execute runs one command against the engine with every transfer entry
// scope-guarded: whether the engine returns, errors, or panics, no entry
// survives the command.
func (w *worker) execute(eng scriptruntime.Engine, slot *transfer.Slot, cmd *command) (out scriptruntime.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Execution(fmt.Sprintf("script engine panicked: %v", r), nil)
		}
	}()

	call := scriptruntime.Call{ArgIDs: make([]transfer.ID, 0, len(cmd.args))}
	for _, payload := range cmd.args {
		g := slot.InstallArg(payload)
		defer g.Release()
		call.ArgIDs = append(call.ArgIDs, g.ID())
	}
	rg := slot.ReserveResult()
	defer rg.Release()
	call.ResultID = rg.ID()

	// The caller's context stops at the queue boundary: an abandoned
	// request still runs to completion here, since in-flight work is
	// never reassigned or interrupted.
	if err := eng.Execute(context.Background(), cmd.script, call); err != nil {
		return scriptruntime.Output{}, err
	}

	data, err := rg.Take()
	if err != nil {
		return scriptruntime.Output{}, err
	}
	return scriptruntime.Output{Data: data}, nil
}

// drainUntilStopped answers for a dead engine until the pool retires this
// worker's generation. Commands that were queued behind the fault, or
// whose send raced the death, still get exactly one completion; their
// callers recover through the reset-and-retry path.
func (w *worker) drainUntilStopped() {
	for {
		select {
		case cmd := <-w.cmds:
			cmd.complete(scriptruntime.Output{}, errors.WorkerDied("worker engine faulted"))
		case <-w.stop:
			w.failQueued()
			return
		}
	}
}

// failQueued fails commands still queued at stop time. The pool closes
// stop only once the generation has no in-flight senders, so the queue
// cannot grow underneath this loop.
func (w *worker) failQueued() {
	for {
		select {
		case cmd := <-w.cmds:
			cmd.complete(scriptruntime.Output{}, errors.WorkerDied("worker stopped"))
		default:
			return
		}
	}
}
