package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
	"github.com/marcusgoll/cfipros-web-sub000/internal/queue"
	"github.com/marcusgoll/cfipros-web-sub000/internal/services"
)

// JobProcessor handles one OCR job.
type JobProcessor interface {
	Process(ctx context.Context, job services.OCRJob) error
}

// =========================================================================
// In-process dispatch
// =========================================================================

// PoolDispatcher runs OCR jobs on a local WorkerPool.
type PoolDispatcher struct {
	pool      *WorkerPool
	processor JobProcessor
}

func NewPoolDispatcher(pool *WorkerPool, processor JobProcessor) *PoolDispatcher {
	return &PoolDispatcher{pool: pool, processor: processor}
}

// Dispatch never blocks. The job runs on the pool's context, not the caller's.
func (d *PoolDispatcher) Dispatch(ctx context.Context, job services.OCRJob) error {
	requestID := logger.GetRequestID(ctx)
	ok := d.pool.TrySubmit(func(workerCtx context.Context) error {
		if requestID != "" {
			workerCtx = logger.WithRequestID(workerCtx, requestID)
		}
		return d.processor.Process(workerCtx, job)
	})
	if !ok {
		return services.ErrDispatchQueueFull
	}
	return nil
}

// =========================================================================
// Redis dispatch
// =========================================================================

// RedisDispatcher enqueues jobs for RedisOCRConsumer, possibly in another process.
type RedisDispatcher struct {
	producer *queue.Producer
}

func NewRedisDispatcher(producer *queue.Producer) *RedisDispatcher {
	return &RedisDispatcher{producer: producer}
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, job services.OCRJob) error {
	if err := d.producer.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue OCR job %s: %w", job.FileID, err)
	}
	return nil
}

// RedisOCRConsumer feeds queued jobs to the processor. Jobs that fail to
// decode or persist land in the dead letter list.
type RedisOCRConsumer struct {
	consumer  *queue.Consumer
	processor JobProcessor
}

func NewRedisOCRConsumer(consumer *queue.Consumer, processor JobProcessor) *RedisOCRConsumer {
	return &RedisOCRConsumer{consumer: consumer, processor: processor}
}

func (c *RedisOCRConsumer) Start(ctx context.Context) {
	go func() {
		logger.Info("redis OCR consumer started")
		if err := c.consumer.Consume(ctx, c.handle); err != nil && ctx.Err() == nil {
			logger.Error("redis OCR consumer stopped", "error", err)
			return
		}
		logger.Info("redis OCR consumer stopped")
	}()
}

func (c *RedisOCRConsumer) handle(ctx context.Context, data []byte) error {
	var job services.OCRJob
	if err := json.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("decode OCR job: %w", err)
	}
	return c.processor.Process(ctx, job)
}
