package learning

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ExtractionCallback runs pattern extraction for one episode id and
// attaches the resulting pattern ids to the episode record. It is called
// back into the orchestrator, which must perform the attach atomically
// under its own write lock.
type ExtractionCallback func(episodeID uuid.UUID) error

// QueueStats is a point-in-time snapshot of extraction queue activity.
type QueueStats struct {
	Depth           int
	Processed       uint64
	Failed          uint64
	AvgLatencyMicros uint64
}

// ExtractionQueue is a bounded FIFO of episode ids drained by N worker
// goroutines, mirroring the cleanup-goroutine idiom used by the TTL cache
// (stopCh/done channel pair, bounded-deadline Stop).
type ExtractionQueue struct {
	items    chan uuid.UUID
	callback ExtractionCallback
	workers  int

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	depth          int64
	processed      uint64
	failed         uint64
	totalLatencyUs uint64
}

// NewExtractionQueue builds a queue with the given capacity and worker
// count. callback is invoked once per dequeued episode id.
func NewExtractionQueue(capacity, workers int, callback ExtractionCallback) *ExtractionQueue {
	if workers < 1 {
		workers = 1
	}
	return &ExtractionQueue{
		items:    make(chan uuid.UUID, capacity),
		callback: callback,
		workers:  workers,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the worker pool.
func (q *ExtractionQueue) Start() {
	var wg sync.WaitGroup
	wg.Add(q.workers)
	for i := 0; i < q.workers; i++ {
		go func() {
			defer wg.Done()
			q.runWorker()
		}()
	}
	go func() {
		wg.Wait()
		close(q.done)
	}()
}

func (q *ExtractionQueue) runWorker() {
	for {
		select {
		case <-q.stopCh:
			for {
				select {
				case id := <-q.items:
					atomic.AddInt64(&q.depth, -1)
					q.process(id)
				default:
					return
				}
			}
		case id, ok := <-q.items:
			if !ok {
				return
			}
			atomic.AddInt64(&q.depth, -1)
			q.process(id)
		}
	}
}

func (q *ExtractionQueue) process(id uuid.UUID) {
	start := time.Now()
	err := q.callback(id)
	elapsed := time.Since(start)

	atomic.AddUint64(&q.totalLatencyUs, uint64(elapsed.Microseconds()))
	if err != nil {
		atomic.AddUint64(&q.failed, 1)
		return
	}
	atomic.AddUint64(&q.processed, 1)
}

// Enqueue submits an episode id for extraction. Returns false without
// blocking if the queue is at capacity or has been stopped.
func (q *ExtractionQueue) Enqueue(id uuid.UUID) bool {
	select {
	case <-q.stopCh:
		return false
	default:
	}
	select {
	case q.items <- id:
		atomic.AddInt64(&q.depth, 1)
		return true
	default:
		return false
	}
}

// Stats returns a snapshot of queue activity.
func (q *ExtractionQueue) Stats() QueueStats {
	processed := atomic.LoadUint64(&q.processed)
	failed := atomic.LoadUint64(&q.failed)
	totalUs := atomic.LoadUint64(&q.totalLatencyUs)

	var avg uint64
	if total := processed + failed; total > 0 {
		avg = totalUs / total
	}

	return QueueStats{
		Depth:            int(atomic.LoadInt64(&q.depth)),
		Processed:        processed,
		Failed:           failed,
		AvgLatencyMicros: avg,
	}
}

// Stop closes the queue to new work and waits for in-flight items to
// drain, bounded by deadline. If the deadline expires first, Stop returns
// without waiting further; Stats().Depth after Stop returns shows how many
// items were still queued at that point.
func (q *ExtractionQueue) Stop(deadline time.Duration) {
	q.stopOnce.Do(func() { close(q.stopCh) })
	select {
	case <-q.done:
	case <-time.After(deadline):
	}
}
