package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultPollInterval = time.Second

// promoteScript moves due delayed jobs to the back of the wait list atomically.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, id in ipairs(due) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('LPUSH', KEYS[2], id)
end
return #due
`)

// RedisQueue is a durable queue with at-least-once delivery.
//
// Keys under prefix:
//
//	jobs     HASH  job id -> JSON job
//	wait     LIST  ready ids, pushed left, popped right
//	active   LIST  ids reserved by a worker
//	delayed  ZSET  ids scored by RunAt in unix milliseconds
type RedisQueue struct {
	client *redis.Client
	prefix string
	logger *slog.Logger

	pollInterval time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue creates a queue named name on client. The caller owns client.
func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisQueue{
		client:       client,
		prefix:       "queue:" + name,
		logger:       slog.Default().With("module", "redis_queue", "queue", name),
		pollInterval: defaultPollInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (q *RedisQueue) key(part string) string {
	return q.prefix + ":" + part
}

// Enqueue stores the job and pushes it onto the wait list.
func (q *RedisQueue) Enqueue(ctx context.Context, orderID string, opts Options) (*Job, error) {
	if q.ctx.Err() != nil {
		return nil, ErrQueueClosed
	}
	opts = opts.normalize()
	now := time.Now()

	job := &Job{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		MaxAttempts: opts.Attempts,
		Backoff:     opts.Backoff,
		RunAt:       now,
		EnqueuedAt:  now,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.key("jobs"), job.ID, data)
		pipe.LPush(ctx, q.key("wait"), job.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", orderID, err)
	}
	return job, nil
}

// Reserve moves the oldest waiting job to the active list.
func (q *RedisQueue) Reserve(ctx context.Context) (*Job, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(q.ctx, cancel)
	defer stop()

	for {
		if q.ctx.Err() != nil {
			return nil, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := q.promoteDue(ctx); err != nil && ctx.Err() == nil {
			q.logger.Warn("Failed to promote delayed jobs", slog.Any("error", err))
		}

		id, err := q.client.BLMove(ctx, q.key("wait"), q.key("active"), "RIGHT", "LEFT", q.pollInterval).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if q.ctx.Err() != nil {
				return nil, ErrQueueClosed
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("reserve: %w", err)
		}

		job, err := q.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if job == nil {
			// data vanished; discard the dangling id
			q.client.LRem(ctx, q.key("active"), 1, id)
			continue
		}

		job.Attempt++
		if err := q.save(ctx, job); err != nil {
			return nil, err
		}
		return job, nil
	}
}

// Complete removes a finished job.
func (q *RedisQueue) Complete(ctx context.Context, job *Job) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.key("active"), 1, job.ID)
		pipe.HDel(ctx, q.key("jobs"), job.ID)
		return nil
	})
	return err
}

// Fail moves job to the delayed set, or removes it when no attempt remains.
func (q *RedisQueue) Fail(ctx context.Context, job *Job, cause error, retryable bool) (Disposition, error) {
	job.LastError = failReason(cause)

	if !retryable || !job.HasAttemptsLeft() {
		if err := q.Complete(ctx, job); err != nil {
			return Dropped, err
		}
		return Dropped, nil
	}

	job.RunAt = time.Now().Add(job.RetryDelay())
	data, err := json.Marshal(job)
	if err != nil {
		return Retrying, err
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.key("active"), 1, job.ID)
		pipe.HSet(ctx, q.key("jobs"), job.ID, data)
		pipe.ZAdd(ctx, q.key("delayed"), redis.Z{Score: float64(job.RunAt.UnixMilli()), Member: job.ID})
		return nil
	})
	return Retrying, err
}

// Recover requeues jobs left in the active list by a crashed process.
// Call it before starting workers.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		_, err := q.client.LMove(ctx, q.key("active"), q.key("wait"), "LEFT", "RIGHT").Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("recover: %w", err)
		}
		n++
	}
	if n > 0 {
		q.logger.Info("Recovered stranded jobs", slog.Int("count", n))
	}
	return n, nil
}

// Counts reports list and set sizes.
func (q *RedisQueue) Counts(ctx context.Context) (Counts, error) {
	var wait, delayed, active *redis.IntCmd
	_, err := q.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		wait = pipe.LLen(ctx, q.key("wait"))
		delayed = pipe.ZCard(ctx, q.key("delayed"))
		active = pipe.LLen(ctx, q.key("active"))
		return nil
	})
	if err != nil {
		return Counts{}, err
	}
	return Counts{
		Waiting: int(wait.Val()),
		Delayed: int(delayed.Val()),
		Active:  int(active.Val()),
	}, nil
}

// Close stops Reserve. The client is left open.
func (q *RedisQueue) Close() error {
	q.closeOnce.Do(q.cancel)
	return nil
}

func (q *RedisQueue) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return promoteScript.Run(ctx, q.client, []string{q.key("delayed"), q.key("wait")}, now, 100).Err()
}

func (q *RedisQueue) load(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.HGet(ctx, q.key("jobs"), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (q *RedisQueue) save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.HSet(ctx, q.key("jobs"), job.ID, data).Err()
}
