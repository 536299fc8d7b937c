package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/btree"
)

// MemoryQueue is an in-process queue. Jobs are lost on restart.
type MemoryQueue struct {
	mu       sync.Mutex
	schedule *btree.BTreeG[*Job] // ordered by (RunAt, seq)
	active   map[string]*Job
	seq      uint64

	signal    chan struct{}
	closed    chan struct{}
	closeOnce sync.Once

	now func() time.Time
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		schedule: btree.NewBTreeGOptions(jobLess, btree.Options{NoLocks: true}),
		active:   make(map[string]*Job),
		signal:   make(chan struct{}, 1),
		closed:   make(chan struct{}),
		now:      time.Now,
	}
}

func jobLess(a, b *Job) bool {
	if !a.RunAt.Equal(b.RunAt) {
		return a.RunAt.Before(b.RunAt)
	}
	return a.seq < b.seq
}

// Enqueue schedules a new job for immediate execution.
func (q *MemoryQueue) Enqueue(ctx context.Context, orderID string, opts Options) (*Job, error) {
	if q.isClosed() {
		return nil, ErrQueueClosed
	}
	opts = opts.normalize()
	now := q.now()

	q.mu.Lock()
	q.seq++
	job := &Job{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		MaxAttempts: opts.Attempts,
		Backoff:     opts.Backoff,
		RunAt:       now,
		EnqueuedAt:  now,
		seq:         q.seq,
	}
	q.schedule.Set(job)
	q.mu.Unlock()

	q.notify()
	return job, nil
}

// Reserve pops the earliest due job, waiting for one if necessary.
func (q *MemoryQueue) Reserve(ctx context.Context) (*Job, error) {
	for {
		if q.isClosed() {
			return nil, ErrQueueClosed
		}

		q.mu.Lock()
		next, ok := q.schedule.Min()
		var wait time.Duration = -1
		if ok {
			wait = next.RunAt.Sub(q.now())
			if wait <= 0 {
				q.schedule.Delete(next)
				next.Attempt++
				q.active[next.ID] = next
				more := q.schedule.Len() > 0
				q.mu.Unlock()
				if more {
					// pass the wakeup on to another waiting worker
					q.notify()
				}
				return next, nil
			}
		}
		q.mu.Unlock()

		if err := q.wait(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// wait blocks until signalled, d elapses (d < 0 waits indefinitely), ctx ends
// or the queue closes.
func (q *MemoryQueue) wait(ctx context.Context, d time.Duration) error {
	var timer <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
		return ErrQueueClosed
	case <-q.signal:
	case <-timer:
	}
	return nil
}

// Complete forgets a finished job.
func (q *MemoryQueue) Complete(ctx context.Context, job *Job) error {
	q.mu.Lock()
	delete(q.active, job.ID)
	q.mu.Unlock()
	return nil
}

// Fail reschedules job after its backoff delay, or drops it.
func (q *MemoryQueue) Fail(ctx context.Context, job *Job, cause error, retryable bool) (Disposition, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.active, job.ID)
	job.LastError = failReason(cause)

	if !retryable || !job.HasAttemptsLeft() {
		return Dropped, nil
	}

	q.seq++
	job.seq = q.seq
	job.RunAt = q.now().Add(job.RetryDelay())
	q.schedule.Set(job)

	q.notify()
	return Retrying, nil
}

// Counts reports waiting, delayed and active jobs.
func (q *MemoryQueue) Counts(ctx context.Context) (Counts, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var c Counts
	q.schedule.Scan(func(j *Job) bool {
		if j.RunAt.After(now) {
			c.Delayed++
		} else {
			c.Waiting++
		}
		return true
	})
	c.Active = len(q.active)
	return c, nil
}

// Close wakes every blocked Reserve with ErrQueueClosed.
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
	return nil
}

func (q *MemoryQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) isClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}
