package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"order_engine/internal/domain"
	"order_engine/internal/infra"
	"order_engine/internal/queue"

	"github.com/shopspring/decimal"
)

const (
	defaultPoolSize     = 10
	defaultResultBuffer = 256
	reserveErrorPause   = time.Second
)

// JobResult is the outcome of one attempt: Success or Failure.
type JobResult interface {
	jobResult()
}

// Success is a confirmed order.
type Success struct {
	JobID         string
	OrderID       string
	TxHash        string
	ExecutedPrice decimal.Decimal
	Attempt       int
}

// Failure is a failed attempt. Retrying tells whether the queue rescheduled it.
type Failure struct {
	JobID        string
	OrderID      string
	Reason       string
	AttemptsUsed int
	Retrying     bool
}

func (Success) jobResult() {}
func (Failure) jobResult() {}

// Policy resolves how failures interact with retries.
type Policy struct {
	// SuppressIntermediateFailures persists a failure that will be retried
	// without broadcasting it. The final failure is always broadcast.
	SuppressIntermediateFailures bool
	// RetryNotFound lets a job whose order does not exist use its remaining
	// attempts. When false it is dropped immediately.
	RetryNotFound bool
}

// DefaultPolicy broadcasts every failure and retries missing orders.
func DefaultPolicy() Policy {
	return Policy{RetryNotFound: true}
}

// Pool runs size workers, each processing one job at a time.
type Pool struct {
	size    int
	queue   queue.Queue
	proc    *Processor
	policy  Policy
	results chan JobResult
	metrics *infra.Metrics
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithSize sets the number of concurrent workers.
func WithSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.size = n
		}
	}
}

// WithPolicy sets the failure policy.
func WithPolicy(policy Policy) PoolOption {
	return func(p *Pool) { p.policy = policy }
}

// WithResultBuffer sets the capacity of the Results channel.
func WithResultBuffer(n int) PoolOption {
	return func(p *Pool) {
		if n >= 0 {
			p.results = make(chan JobResult, n)
		}
	}
}

// WithPoolMetrics records job outcomes into m.
func WithPoolMetrics(m *infra.Metrics) PoolOption {
	return func(p *Pool) { p.metrics = m }
}

// NewPool creates a stopped pool.
func NewPool(q queue.Queue, proc *Processor, opts ...PoolOption) *Pool {
	p := &Pool{
		size:    defaultPoolSize,
		queue:   q,
		proc:    proc,
		policy:  DefaultPolicy(),
		results: make(chan JobResult, defaultResultBuffer),
		metrics: &infra.Metrics{},
		logger:  slog.Default().With("module", "worker_pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Results delivers one JobResult per attempt. Results are dropped when the
// channel is full. It is closed after Stop returns.
func (p *Pool) Results() <-chan JobResult {
	return p.results
}

// Start launches the workers. Cancelling ctx stops reserving new jobs.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.logger.Info("Worker pool started", slog.Int("size", p.size))
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop stops reserving and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.once.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
		close(p.results)
		p.logger.Info("Worker pool stopped")
	})
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	logger := p.logger.With(slog.Int("worker", id))

	for {
		job, err := p.queue.Reserve(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) || ctx.Err() != nil {
				return
			}
			logger.Error("Reserve failed", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(reserveErrorPause):
			}
			continue
		}

		// An in-flight job runs to completion even while stopping.
		p.handle(context.WithoutCancel(ctx), logger, job)
	}
}

func (p *Pool) handle(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	p.metrics.WorkerBusy(true)
	defer p.metrics.WorkerBusy(false)

	var failOpts []TransitionOption
	if p.policy.SuppressIntermediateFailures && job.HasAttemptsLeft() {
		failOpts = append(failOpts, WithoutBroadcast())
	}

	res, err := p.proc.Process(ctx, job.OrderID, failOpts...)
	if err == nil {
		if cerr := p.queue.Complete(ctx, job); cerr != nil {
			logger.Error("Complete failed", slog.String("job_id", job.ID), slog.Any("error", cerr))
		}
		p.metrics.RecordConfirmed(time.Since(job.EnqueuedAt))
		p.emit(Success{
			JobID:         job.ID,
			OrderID:       job.OrderID,
			TxHash:        res.TxHash,
			ExecutedPrice: res.ExecutedPrice,
			Attempt:       job.Attempt,
		})
		return
	}

	retryable := p.policy.RetryNotFound || !domain.IsNotFound(err)
	disp, ferr := p.queue.Fail(ctx, job, err, retryable)
	if ferr != nil {
		logger.Error("Fail failed", slog.String("job_id", job.ID), slog.Any("error", ferr))
	}

	retrying := disp == queue.Retrying && ferr == nil
	if retrying {
		p.metrics.RecordRetry()
	} else {
		p.metrics.RecordFailed()
	}

	logger.Warn("Job attempt failed",
		slog.String("job_id", job.ID),
		slog.String("order_id", job.OrderID),
		slog.Int("attempt", job.Attempt),
		slog.Int("max_attempts", job.MaxAttempts),
		slog.String("disposition", disp.String()),
		slog.Any("error", err),
	)
	p.emit(Failure{
		JobID:        job.ID,
		OrderID:      job.OrderID,
		Reason:       err.Error(),
		AttemptsUsed: job.Attempt,
		Retrying:     retrying,
	})
}

func (p *Pool) emit(r JobResult) {
	select {
	case p.results <- r:
	default:
		p.logger.Warn("Results channel full, dropping result")
	}
}
