package pool

import (
	"context"

	scriptruntime "github.com/vegaviz/script-runtime"
	"github.com/vegaviz/script-runtime/errors"
)

// next picks the target worker: atomic fetch-and-increment reduced modulo
// the worker count. Routing stays load-unaware: in-flight work cannot be
// redistributed between stateful engines, so queue depth is not a signal
// the policy could act on.
func (p *Pool) next(g *generation) *worker {
	idx := p.cursor.Add(1) - 1
	return g.workers[idx%uint64(len(g.workers))]
}

// send enqueues the command with bounded-channel backpressure: it blocks
// while the worker's queue is full. It fails fast with the internal
// worker-died error when the worker can no longer serve, and aborts on
// context cancellation.
func send(ctx context.Context, w *worker, cmd *command) error {
	select {
	case <-w.dead:
		return errors.WorkerDied("worker not accepting commands")
	default:
	}
	select {
	case w.cmds <- cmd:
		return nil
	case <-w.dead:
		return errors.WorkerDied("worker died during enqueue")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await blocks until the command completes or the caller gives up. A
// caller that gives up learns nothing about the command's fate; the
// command itself still completes exactly once.
func await(ctx context.Context, cmd *command) (scriptruntime.Output, error) {
	select {
	case res := <-cmd.resp:
		return res.out, res.err
	case <-ctx.Done():
		return scriptruntime.Output{}, ctx.Err()
	}
}
