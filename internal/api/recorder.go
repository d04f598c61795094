package api

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FocuswithJustin/GitaCompanion/core/verse"
	"github.com/FocuswithJustin/GitaCompanion/internal/logging"
	"github.com/FocuswithJustin/GitaCompanion/internal/store"
)

// recordTimeout bounds a single background progress write.
const recordTimeout = 5 * time.Second

// ProgressUpdate is a verse read waiting to be recorded.
type ProgressUpdate struct {
	UserID string
	Verse  verse.Coordinate
	At     time.Time
}

// RecorderStats reports ProgressRecorder counters.
type RecorderStats struct {
	Workers  int   `json:"workers"`
	Queued   int   `json:"queued"`
	Recorded int64 `json:"recorded"`
	Dropped  int64 `json:"dropped"`
	Failed   int64 `json:"failed"`
}

// ProgressRecorder records verse reads in the background with a fixed pool
// of workers. Updates are best-effort: when the queue is full they are
// dropped and logged.
type ProgressRecorder struct {
	store     store.ProgressStore
	publisher Publisher
	queue     chan ProgressUpdate
	workers   int
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	recorded atomic.Int64
	dropped  atomic.Int64
	failed   atomic.Int64
}

// NewProgressRecorder starts workers goroutines reading from a queue of
// queueSize updates. publisher may be nil.
func NewProgressRecorder(st store.ProgressStore, publisher Publisher, workers, queueSize int) *ProgressRecorder {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	r := &ProgressRecorder{
		store:     st,
		publisher: publisher,
		queue:     make(chan ProgressUpdate, queueSize),
		workers:   workers,
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	return r
}

// Enqueue queues u without blocking. It reports false when the update was
// dropped because the queue is full or the recorder is shut down.
func (r *ProgressRecorder) Enqueue(u ProgressUpdate) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return false
	}
	select {
	case r.queue <- u:
		return true
	default:
		r.dropped.Add(1)
		logging.Warn("progress queue full, dropping update",
			"user_id", u.UserID,
			"verse", u.Verse.String())
		return false
	}
}

// Shutdown stops accepting updates and waits for queued ones to be
// recorded or for ctx to end.
func (r *ProgressRecorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the recorder counters.
func (r *ProgressRecorder) Stats() RecorderStats {
	return RecorderStats{
		Workers:  r.workers,
		Queued:   len(r.queue),
		Recorded: r.recorded.Load(),
		Dropped:  r.dropped.Load(),
		Failed:   r.failed.Load(),
	}
}

func (r *ProgressRecorder) worker(id int) {
	defer r.wg.Done()
	for u := range r.queue {
		r.record(id, u)
	}
}

func (r *ProgressRecorder) record(worker int, u ProgressUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	p, err := r.store.RecordProgress(ctx, u.UserID, u.Verse, u.At)
	if err != nil {
		r.failed.Add(1)
		logging.Warn("progress update failed",
			"worker", worker,
			"user_id", u.UserID,
			"verse", u.Verse.String(),
			"error", err)
		return
	}
	r.recorded.Add(1)
	if r.publisher != nil {
		r.publisher.Publish(u.UserID, Event{Type: EventProgress, Progress: &p})
	}
}
