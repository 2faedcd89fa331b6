// Package queue provides a durable Redis-list job queue with bounded retry
// and at-least-once delivery.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Queue key names for the two notification stages. Keeping them distinct
// gives each stage its own worker pool and makes the pipeline's state
// machine visible in the wiring rather than implicit in job-name matching.
const (
	KeyNotificationInit     = "queue:notification:init"
	KeyNotificationDelivery = "queue:notification:delivery"
)

// envelope wraps a payload with a correlation id and its retry counter.
// The job id survives requeues so every attempt of one job shares a log
// trail.
type envelope struct {
	JobID    string          `json:"jobId"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Queue is one named durable queue.
type Queue struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// New constructs a queue over the shared Redis client.
func New(client *redis.Client, key string, logger *zap.Logger) *Queue {
	return &Queue{client: client, key: key, logger: logger}
}

// Key returns the Redis list backing the queue.
func (q *Queue) Key() string {
	return q.key
}

// Enqueue pushes a payload. The payload must round-trip through JSON
// exactly; callers pass typed job structs.
func (q *Queue) Enqueue(ctx context.Context, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return q.push(ctx, envelope{JobID: uuid.NewString(), Payload: raw})
}

func (q *Queue) push(ctx context.Context, env envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, body).Err()
}

// pop blocks up to timeout for the next envelope. A nil envelope with nil
// error means the wait timed out.
func (q *Queue) pop(ctx context.Context, timeout time.Duration) (*envelope, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(res) != 2 {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
		q.logger.Error("dropping undecodable job", zap.String("queue", q.key), zap.Error(err))
		return nil, nil
	}
	return &env, nil
}
