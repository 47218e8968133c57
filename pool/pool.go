package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	scriptruntime "github.com/vegaviz/script-runtime"
	"github.com/vegaviz/script-runtime/errors"
)

// DefaultQueueCapacity bounds each worker's inbound command queue unless
// configured otherwise. Overload blocks senders instead of growing memory.
const DefaultQueueCapacity = 32

// Config holds configuration for pool construction
type Config struct {
	// Workers is the fixed number of engine workers; must be >= 1.
	// The count is immutable for the pool's lifetime.
	Workers int

	// QueueCapacity bounds each worker's inbound command queue.
	// 0 means DefaultQueueCapacity.
	QueueCapacity int

	// Factory constructs one engine per worker and performs the one-time
	// platform initialization.
	Factory scriptruntime.EngineFactory

	// Metrics, when set, receives pool instrumentation.
	Metrics *Metrics
}

// DefaultConfig returns a single-worker configuration for the factory.
func DefaultConfig(factory scriptruntime.EngineFactory) Config {
	return Config{
		Workers:       1,
		QueueCapacity: DefaultQueueCapacity,
		Factory:       factory,
	}
}

// generation is one spawned worker set. refs counts in-flight sends plus
// one base reference the pool holds until the generation is retired; idle
// closes once both are gone, which is the point where worker queues can
// be stopped without racing a sender.
type generation struct {
	id       uint64
	workers  []*worker
	refs     atomic.Int64
	retired  atomic.Bool
	idle     chan struct{}
	idleOnce sync.Once
}

func (g *generation) release() {
	if g.refs.Add(-1) == 0 && g.retired.Load() {
		g.idleOnce.Do(func() {
			close(g.idle)
		})
	}
}

func (g *generation) retire() {
	g.retired.Store(true)
	g.release() // base reference
}

// Pool owns a fixed set of engine workers. Workers spawn lazily on first
// use; a reset replaces the whole set. Access goes through Handle.
type Pool struct {
	cfg     Config
	mu      sync.Mutex // guards spawn/reset/teardown state, never held during execution
	closed  bool
	gen     *generation
	lastGen uint64
	cursor  atomic.Uint64
	refs    atomic.Int64 // outstanding handles
}

// Handle is the pool's reference-counted front door. Handles are cheap,
// safe for concurrent use, and cloneable; clones share one pool and one
// worker set. Closing the last handle tears the pool down. An independent
// pool requires a separate New.
type Handle struct {
	pool   *Pool
	closed atomic.Bool
}

// New validates the configuration and returns a handle to a fresh pool.
// Workers are not started until the first request (or WarmUp).
func New(cfg Config) (*Handle, error) {
	if cfg.Factory == nil {
		return nil, errors.InvalidConfig("engine factory is required")
	}
	if cfg.Workers < 1 {
		return nil, errors.InvalidConfig("worker count must be >= 1")
	}
	if cfg.QueueCapacity < 0 {
		return nil, errors.InvalidConfig("queue capacity must be >= 0")
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}

	p := &Pool{cfg: cfg}
	p.refs.Store(1)
	return &Handle{pool: p}, nil
}

// WorkerCount returns the configured worker count.
func (h *Handle) WorkerCount() int {
	return h.pool.cfg.Workers
}

// Clone returns a new handle sharing this handle's pool: same workers,
// same queues, same cached engine state.
func (h *Handle) Clone() *Handle {
	h.pool.refs.Add(1)
	return &Handle{pool: h.pool}
}

// WarmUp eagerly spawns the workers. Optional; without it the pool spawns
// on the first request.
func (h *Handle) WarmUp() error {
	if h.closed.Load() {
		return errors.Closed("pool handle")
	}
	g, err := h.pool.acquire()
	if err != nil {
		return err
	}
	g.release()
	return nil
}

// Close releases this handle. Closing the last outstanding handle tears
// down all workers, blocking until they exit. Close is idempotent.
func (h *Handle) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	if h.pool.refs.Add(-1) > 0 {
		return nil
	}
	return h.pool.teardown()
}

// Request executes one script against the pool. It blocks while the
// chosen worker's queue is full (backpressure) and until the result
// arrives. Transient worker death is recovered internally (the pool is
// reset once and the request retried against the fresh workers) and is
// invisible to the caller beyond latency. Only a second infrastructure
// failure surfaces, as an unavailable error. Engine errors are returned
// unchanged and never retried.
//
// args are installed into the serving worker's transfer slot; the script
// pulls them by id.
func (h *Handle) Request(ctx context.Context, script scriptruntime.ScriptRef, args ...[]byte) (scriptruntime.Output, error) {
	if h.closed.Load() {
		return scriptruntime.Output{}, errors.Closed("pool handle")
	}
	return h.pool.request(ctx, script, args)
}

func (p *Pool) request(ctx context.Context, script scriptruntime.ScriptRef, args [][]byte) (scriptruntime.Output, error) {
	g, err := p.acquire()
	if err != nil {
		return scriptruntime.Output{}, err
	}

	cmd := newCommand(script, args)
	w := p.next(g)
	p.cfg.Metrics.dispatched(w.index)
	Logger().Debug("dispatch",
		zap.String("request", cmd.id.String()),
		zap.Int("worker", w.index),
		zap.Uint64("generation", g.id))

	err = send(ctx, w, cmd)
	g.release()
	if err != nil {
		if !errors.IsWorkerDied(err) {
			return scriptruntime.Output{}, err
		}
		return p.retry(ctx, g.id, script, args)
	}

	p.cfg.Metrics.inflight(1)
	out, err := await(ctx, cmd)
	p.cfg.Metrics.inflight(-1)
	if errors.IsWorkerDied(err) {
		// The command was queued on a worker that died before serving it.
		return p.retry(ctx, g.id, script, args)
	}
	return out, err
}

// retry is the single post-reset attempt. A second worker death, or a
// failure to respawn, is systemic and surfaces as unavailable.
func (p *Pool) retry(ctx context.Context, stale uint64, script scriptruntime.ScriptRef, args [][]byte) (scriptruntime.Output, error) {
	g, err := p.reset(stale)
	if err != nil {
		if errors.IsClosed(err) {
			return scriptruntime.Output{}, err
		}
		return scriptruntime.Output{}, errors.Unavailable(err)
	}

	cmd := newCommand(script, args)
	w := p.next(g)
	p.cfg.Metrics.dispatched(w.index)

	err = send(ctx, w, cmd)
	g.release()
	if err != nil {
		if errors.IsWorkerDied(err) {
			return scriptruntime.Output{}, errors.Unavailable(err)
		}
		return scriptruntime.Output{}, err
	}

	p.cfg.Metrics.inflight(1)
	out, err := await(ctx, cmd)
	p.cfg.Metrics.inflight(-1)
	if errors.IsWorkerDied(err) {
		return scriptruntime.Output{}, errors.Unavailable(err)
	}
	return out, err
}

// acquire returns the live generation with a send reference held,
// spawning the workers first if none exist.
func (p *Pool) acquire() (*generation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquireLocked()
}

func (p *Pool) acquireLocked() (*generation, error) {
	if p.closed {
		return nil, errors.Closed("worker pool")
	}
	if p.gen == nil {
		g, err := p.spawnLocked()
		if err != nil {
			return nil, err
		}
		p.gen = g
	}
	p.gen.refs.Add(1)
	return p.gen, nil
}

// spawnLocked starts a full worker set. Platform init runs first, on the
// same goroutine that then creates every worker, which is what makes the
// workers descendants of the initializing thread.
func (p *Pool) spawnLocked() (*generation, error) {
	ensurePlatformInitialized(p.cfg.Factory)

	p.lastGen++
	g := &generation{
		id:      p.lastGen,
		workers: make([]*worker, p.cfg.Workers),
		idle:    make(chan struct{}),
	}
	g.refs.Store(1) // base reference, dropped on retire

	handshakes := make([]chan error, p.cfg.Workers)
	for i := range g.workers {
		w := newWorker(i, p.cfg.QueueCapacity)
		g.workers[i] = w
		handshakes[i] = make(chan error, 1)
		go w.run(p.cfg.Factory, handshakes[i])
	}

	var eg errgroup.Group
	for i := range handshakes {
		hs := handshakes[i]
		eg.Go(func() error {
			return <-hs
		})
	}
	if err := eg.Wait(); err != nil {
		// Tear the partial set back down before reporting.
		for _, w := range g.workers {
			close(w.stop)
		}
		for _, w := range g.workers {
			<-w.done
		}
		return nil, errors.Spawn("initialize worker", err)
	}

	p.cfg.Metrics.spawned(p.cfg.Workers)
	Logger().Debug("spawned worker pool",
		zap.Int("workers", p.cfg.Workers),
		zap.Uint64("generation", g.id))
	return g, nil
}

// reset replaces the worker set that contained a dead worker. Concurrent
// discoveries collapse into a single reset: whoever arrives after the
// generation has already been replaced picks up the fresh one instead of
// resetting again.
func (p *Pool) reset(stale uint64) (*generation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.Closed("worker pool")
	}
	if p.gen != nil && p.gen.id == stale {
		Logger().Warn("resetting worker pool", zap.Uint64("generation", stale))
		p.cfg.Metrics.reset()
		p.retireLocked(p.gen)
		p.gen = nil
	}
	return p.acquireLocked()
}

// retireLocked detaches a generation. Its workers keep answering queued
// commands until every in-flight send has finished, then stop and drain
// in the background; the replacement set does not wait on them.
func (p *Pool) retireLocked(g *generation) {
	workers := g.workers
	go func() {
		<-g.idle
		for _, w := range workers {
			close(w.stop)
		}
		for _, w := range workers {
			<-w.done
		}
	}()
	g.retire()
}

// teardown runs when the last handle closes: retire the current worker
// set and wait for every worker to exit.
func (p *Pool) teardown() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	g := p.gen
	p.gen = nil
	p.mu.Unlock()

	if g == nil {
		return nil
	}
	g.retire()
	<-g.idle
	for _, w := range g.workers {
		close(w.stop)
	}
	for _, w := range g.workers {
		<-w.done
	}
	return nil
}
