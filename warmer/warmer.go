package warmer

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/simcache/cache"
)

// Request asks the warmer to populate caches covering an area.
type Request struct {
	CacheID cache.ID
	Center  cache.Vec2
	Radius  float64
}

// Result is one warmed cell produced by a worker. The manager applies
// results on its own tick, so worker goroutines never hold a cache lock.
type Result struct {
	CacheID  cache.ID
	Cell     cache.CellCoord
	Entities []uint64
	Size     uint64
}

// Producer computes the warm results for one request. It runs on a
// warmer worker goroutine and must not touch any cache directly. It
// should return early when ctx is canceled.
type Producer func(ctx context.Context, req Request) []Result

// Config configures a Warmer.
type Config struct {
	// Workers is the number of worker goroutines.
	// Default: 2
	Workers int

	// QueueSize bounds the pending-request channel. Submissions beyond
	// the bound are dropped.
	// Default: 64
	QueueSize int

	// ResultBuffer bounds the results channel. Results beyond the bound
	// are dropped.
	// Default: 256
	ResultBuffer int
}

// Warmer is the background cache warming pool.
//
// Contract:
// - Concurrency: Submit and Drain are safe for concurrent use.
// - Blocking: Submit and Drain never block; both degrade by dropping.
type Warmer struct {
	cfg      Config
	producer Producer
	requests chan Request
	results  chan Result
	group    *errgroup.Group
	cancel   context.CancelFunc
	started  atomic.Bool
	dropped  atomic.Uint64
}

// New creates a Warmer. The pool does not run until Start is called.
func New(cfg Config, producer Producer) *Warmer {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.ResultBuffer <= 0 {
		cfg.ResultBuffer = 256
	}
	return &Warmer{
		cfg:      cfg,
		producer: producer,
		requests: make(chan Request, cfg.QueueSize),
		results:  make(chan Result, cfg.ResultBuffer),
	}
}

// Start launches the worker pool. Calling Start twice is a no-op.
func (w *Warmer) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Workers; i++ {
		w.group.Go(func() error {
			w.run(ctx)
			return nil
		})
	}
}

func (w *Warmer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.requests:
			for _, res := range w.producer(ctx, req) {
				select {
				case w.results <- res:
				default:
					w.dropped.Add(1)
				}
			}
		}
	}
}

// Stop cancels the workers and waits for them to exit. Buffered results
// remain drainable after Stop.
func (w *Warmer) Stop() {
	if !w.started.Load() || w.cancel == nil {
		return
	}
	w.cancel()
	w.group.Wait()
}

// Submit queues a warming request without blocking. Returns false when
// the queue is full and the request was dropped.
func (w *Warmer) Submit(req Request) bool {
	select {
	case w.requests <- req:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

// Drain applies every buffered result without blocking and returns how
// many were applied.
func (w *Warmer) Drain(apply func(Result)) int {
	applied := 0
	for {
		select {
		case res := <-w.results:
			apply(res)
			applied++
		default:
			return applied
		}
	}
}

// Dropped returns the number of requests and results dropped so far.
func (w *Warmer) Dropped() uint64 {
	return w.dropped.Load()
}
