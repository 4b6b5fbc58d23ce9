package queue

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
)

const defaultPollTimeout = 5 * time.Second

type MessageHandler func(ctx context.Context, data []byte) error

// Consumer pops messages from a Redis list. Messages whose handler fails are
// moved to the dead letter list queue+dlqSuffix.
type Consumer struct {
	client      *redis.Client
	queue       string
	dlq         string
	pollTimeout time.Duration
}

func NewConsumer(client *redis.Client, queue, dlqSuffix string) *Consumer {
	return &Consumer{
		client:      client,
		queue:       queue,
		dlq:         queue + dlqSuffix,
		pollTimeout: defaultPollTimeout,
	}
}

// Consume blocks until ctx is done.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	log := logger.With("queue", c.queue)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := c.client.BRPop(ctx, c.pollTimeout, c.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("failed to consume message", "error", err)
			sleepCtx(ctx, time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		message := result[1]
		if err := handler(ctx, []byte(message)); err != nil {
			log.Error("failed to process message", "error", err)
			if dlqErr := c.client.LPush(context.WithoutCancel(ctx), c.dlq, message).Err(); dlqErr != nil {
				log.Error("failed to move message to DLQ", "dlq", c.dlq, "error", dlqErr)
			}
		}
	}
}

// Depth reports the pending and dead letter list lengths.
func (c *Consumer) Depth(ctx context.Context) (pending, dead int64, err error) {
	pipe := c.client.Pipeline()
	p := pipe.LLen(ctx, c.queue)
	d := pipe.LLen(ctx, c.dlq)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	return p.Val(), d.Val(), nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
