package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Producer pushes JSON messages onto a Redis list.
type Producer struct {
	client *redis.Client
	queue  string
}

func NewProducer(client *redis.Client, queue string) *Producer {
	return &Producer{client: client, queue: queue}
}

func (p *Producer) Queue() string {
	return p.queue
}

func (p *Producer) Enqueue(ctx context.Context, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message for %s: %w", p.queue, err)
	}
	return p.client.LPush(ctx, p.queue, data).Err()
}
