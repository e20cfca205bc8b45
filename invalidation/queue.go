package invalidation

import (
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/simcache/cache"
)

// Priority orders pending invalidation requests. Higher priorities are
// always applied first within one drain.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Request is one pending invalidation, created when a trigger fires and
// consumed when the queue drains. CacheID names the propagation source;
// the full affected set is resolved against the graph at drain time.
type Request struct {
	CacheID     cache.ID
	Strategy    Strategy
	Propagation Propagation
	Priority    Priority
	Timestamp   time.Time

	seq uint64
}

// Queue is the shared pending-invalidation queue. Enqueue appends under a
// short lock; Drain swaps the whole backlog out in one step, so
// producers are never blocked behind request processing.
type Queue struct {
	mu      sync.Mutex
	pending []Request
	seq     uint64
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends a request. Cheap and non-blocking beyond the lock.
func (q *Queue) Enqueue(r Request) {
	q.mu.Lock()
	q.seq++
	r.seq = q.seq
	q.pending = append(q.pending, r)
	q.mu.Unlock()
}

// Len returns the number of pending requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain takes ownership of all pending requests and returns them ordered
// by priority (highest first), then timestamp (oldest first), then
// enqueue order.
func (q *Queue) Drain() []Request {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}
		if !pending[i].Timestamp.Equal(pending[j].Timestamp) {
			return pending[i].Timestamp.Before(pending[j].Timestamp)
		}
		return pending[i].seq < pending[j].seq
	})
	return pending
}
