// Package queue holds order jobs until a worker reserves them, and
// reschedules failed attempts with backoff.
package queue

import (
	"context"
	"errors"
	"time"

	"order_engine/internal/infra"
)

// ErrQueueClosed is returned by Enqueue and Reserve after Close.
var ErrQueueClosed = errors.New("queue closed")

// Backoff is the retry delay policy of a job.
type Backoff struct {
	Type  infra.BackoffType `json:"type"`
	Delay time.Duration     `json:"delay"`
}

// Options controls attempts and retry delays of an enqueued job.
type Options struct {
	Attempts int
	Backoff  Backoff
}

// DefaultOptions is 3 attempts with exponential backoff from 500ms.
func DefaultOptions() Options {
	return Options{
		Attempts: 3,
		Backoff:  Backoff{Type: infra.BackoffExponential, Delay: 500 * time.Millisecond},
	}
}

// OptionsFromConfig builds job options from the queue config section.
func OptionsFromConfig(cfg infra.QueueConfig) Options {
	return Options{
		Attempts: cfg.Attempts,
		Backoff: Backoff{
			Type:  infra.BackoffType(cfg.Backoff.Type),
			Delay: time.Duration(cfg.Backoff.DelayMS) * time.Millisecond,
		},
	}
}

func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.Attempts <= 0 {
		o.Attempts = def.Attempts
	}
	if o.Backoff.Type == "" {
		o.Backoff.Type = def.Backoff.Type
	}
	return o
}

// Job is one unit of work: run the pipeline for OrderID.
type Job struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"orderId"`
	Attempt     int       `json:"attempt"` // 1-based, incremented on every Reserve
	MaxAttempts int       `json:"maxAttempts"`
	Backoff     Backoff   `json:"backoff"`
	RunAt       time.Time `json:"runAt"`
	LastError   string    `json:"lastError,omitempty"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`

	seq uint64
}

// HasAttemptsLeft reports whether another attempt may follow the current one.
func (j *Job) HasAttemptsLeft() bool {
	return j.Attempt < j.MaxAttempts
}

// RetryDelay is the wait before the next attempt: delay * 2^(attempt-1) for
// exponential backoff.
func (j *Job) RetryDelay() time.Duration {
	return infra.CalculateBackoff(j.Backoff.Type, j.Backoff.Delay, j.Attempt)
}

// Disposition is what Fail did with a job.
type Disposition int

const (
	// Retrying means the job was rescheduled for another attempt.
	Retrying Disposition = iota
	// Dropped means the job was removed for good.
	Dropped
)

func (d Disposition) String() string {
	if d == Retrying {
		return "retrying"
	}
	return "dropped"
}

// Counts is a point-in-time size of each job state.
type Counts struct {
	Waiting int `json:"waiting"`
	Delayed int `json:"delayed"`
	Active  int `json:"active"`
}

// Queue delivers each job instance to exactly one consumer.
type Queue interface {
	Enqueue(ctx context.Context, orderID string, opts Options) (*Job, error)
	// Reserve blocks until a job is due, ctx ends or the queue closes.
	Reserve(ctx context.Context) (*Job, error)
	Complete(ctx context.Context, job *Job) error
	// Fail reschedules job when retryable and attempts remain, otherwise drops it.
	Fail(ctx context.Context, job *Job, cause error, retryable bool) (Disposition, error)
	Counts(ctx context.Context) (Counts, error)
	Close() error
}

// failReason renders cause for Job.LastError.
func failReason(cause error) string {
	if cause == nil {
		return "unknown"
	}
	return cause.Error()
}
