package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type listPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

type listPopper interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// RedisInvoker queues invocations on a redis list for a Consumer.
type RedisInvoker struct {
	client listPusher
	queue  string
}

func NewRedisInvoker(client *redis.Client, queue string) *RedisInvoker {
	return &RedisInvoker{client: client, queue: queue}
}

func (r *RedisInvoker) Invoke(ctx context.Context, inv Invocation) error {
	raw, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("Invoke: failed to marshal invocation: %w", err)
	}
	if err := r.client.RPush(ctx, r.queue, raw).Err(); err != nil {
		return fmt.Errorf("Invoke: failed to queue invocation %s: %w", inv.ID, err)
	}
	return nil
}

// Consumer pops invocations off the queue and replays each one through the
// worker handler.
type Consumer struct {
	client  listPopper
	queue   string
	handler http.Handler
	poll    time.Duration
	log     *zap.Logger
}

func NewConsumer(client *redis.Client, queue string, handler http.Handler, log *zap.Logger) *Consumer {
	return &Consumer{client: client, queue: queue, handler: handler, poll: 5 * time.Second, log: log.Named("consumer")}
}

// Run consumes until ctx is done. Failed invocations are logged and dropped.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("Run: consuming", zap.String("queue", c.queue))
	for {
		if ctx.Err() != nil {
			return nil
		}

		vals, err := c.client.BLPop(ctx, c.poll, c.queue).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case ctx.Err() != nil:
			return nil
		case err != nil:
			return fmt.Errorf("Run: failed to pop from %s: %w", c.queue, err)
		}

		// BLPOP replies with [key, value].
		if len(vals) != 2 {
			continue
		}
		var inv Invocation
		if err := json.Unmarshal([]byte(vals[1]), &inv); err != nil {
			c.log.Error("Run: dropping undecodable invocation", zap.Error(err))
			continue
		}

		status := Dispatch(ctx, c.handler, inv)
		log := c.log.With(zap.String("invocation", inv.ID), zap.Int("status", status))
		if status >= http.StatusBadRequest {
			log.Error("Run: invocation failed")
			continue
		}
		log.Debug("Run: invocation handled")
	}
}
