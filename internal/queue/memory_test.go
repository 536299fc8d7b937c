package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"order_engine/internal/infra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() Options {
	return Options{Attempts: 3, Backoff: Backoff{Type: infra.BackoffExponential, Delay: 10 * time.Millisecond}}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 3, opts.Attempts)
	assert.Equal(t, infra.BackoffExponential, opts.Backoff.Type)
	assert.Equal(t, 500*time.Millisecond, opts.Backoff.Delay)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := infra.DefaultConfig().Queue
	cfg.Attempts = 5
	cfg.Backoff.Type = "fixed"
	cfg.Backoff.DelayMS = 250

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, 5, opts.Attempts)
	assert.Equal(t, infra.BackoffFixed, opts.Backoff.Type)
	assert.Equal(t, 250*time.Millisecond, opts.Backoff.Delay)
}

func TestJob_RetryDelay(t *testing.T) {
	job := &Job{MaxAttempts: 3, Backoff: DefaultOptions().Backoff}

	job.Attempt = 1
	assert.Equal(t, 500*time.Millisecond, job.RetryDelay())
	assert.True(t, job.HasAttemptsLeft())

	job.Attempt = 2
	assert.Equal(t, time.Second, job.RetryDelay())
	assert.True(t, job.HasAttemptsLeft())

	job.Attempt = 3
	assert.False(t, job.HasAttemptsLeft())
}

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := q.Enqueue(ctx, id, DefaultOptions())
		require.NoError(t, err)
	}

	for _, want := range []string{"a", "b", "c"} {
		job, err := q.Reserve(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, job.OrderID)
		assert.Equal(t, 1, job.Attempt)
		require.NoError(t, q.Complete(ctx, job))
	}
}

func TestMemoryQueue_ReserveBlocksUntilEnqueue(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()
	ctx := context.Background()

	got := make(chan *Job, 1)
	go func() {
		job, err := q.Reserve(ctx)
		if err == nil {
			got <- job
		}
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := q.Enqueue(ctx, "late", DefaultOptions())
	require.NoError(t, err)

	select {
	case job := <-got:
		assert.Equal(t, "late", job.OrderID)
	case <-time.After(time.Second):
		t.Fatal("Reserve did not wake up")
	}
}

func TestMemoryQueue_EachJobToOneConsumer(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	const jobs = 50
	for i := 0; i < jobs; i++ {
		_, err := q.Enqueue(ctx, "o", DefaultOptions())
		require.NoError(t, err)
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := q.Reserve(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[job.ID]++
				done := len(seen) == jobs
				mu.Unlock()
				q.Complete(ctx, job)
				if done {
					q.Close()
				}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, jobs)
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s delivered %d times", id, n)
	}
}

func TestMemoryQueue_RetryWithBackoff(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "o-1", fastOptions())
	require.NoError(t, err)

	var reservedAt []time.Time
	var disp Disposition
	for i := 0; i < 3; i++ {
		job, err := q.Reserve(ctx)
		require.NoError(t, err)
		reservedAt = append(reservedAt, time.Now())
		assert.Equal(t, i+1, job.Attempt)

		disp, err = q.Fail(ctx, job, errors.New("boom"), true)
		require.NoError(t, err)
		assert.Equal(t, "boom", job.LastError)
	}

	assert.Equal(t, Dropped, disp, "third failure should exhaust attempts")
	assert.GreaterOrEqual(t, reservedAt[1].Sub(reservedAt[0]), 10*time.Millisecond)
	assert.GreaterOrEqual(t, reservedAt[2].Sub(reservedAt[1]), 20*time.Millisecond)

	counts, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)
}

func TestMemoryQueue_NonRetryableDrops(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "o-1", fastOptions())
	require.NoError(t, err)
	job, err := q.Reserve(ctx)
	require.NoError(t, err)

	disp, err := q.Fail(ctx, job, errors.New("order not found: o-1"), false)
	require.NoError(t, err)
	assert.Equal(t, Dropped, disp)

	counts, _ := q.Counts(ctx)
	assert.Zero(t, counts.Waiting+counts.Delayed+counts.Active)
}

func TestMemoryQueue_Counts(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()
	ctx := context.Background()

	opts := Options{Attempts: 2, Backoff: Backoff{Type: infra.BackoffFixed, Delay: time.Hour}}
	q.Enqueue(ctx, "a", opts)
	q.Enqueue(ctx, "b", opts)
	q.Enqueue(ctx, "c", opts)

	first, _ := q.Reserve(ctx)
	second, _ := q.Reserve(ctx)
	q.Fail(ctx, second, errors.New("later"), true)

	counts, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Waiting: 1, Delayed: 1, Active: 1}, counts)

	q.Complete(ctx, first)
	counts, _ = q.Counts(ctx)
	assert.Equal(t, 0, counts.Active)
}

func TestMemoryQueue_Close(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() {
		_, err := q.Reserve(ctx)
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("Reserve not released by Close")
	}

	_, err := q.Enqueue(ctx, "x", DefaultOptions())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestMemoryQueue_ReserveHonorsContext(t *testing.T) {
	q := NewMemoryQueue()
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Reserve(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
