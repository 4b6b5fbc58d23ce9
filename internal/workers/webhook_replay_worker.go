package workers

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
)

const replayBatchSize = 50

// EventReplayer is the part of the subscription service the replay worker drives.
type EventReplayer interface {
	ReplayFailedEvents(ctx context.Context, db *gorm.DB, maxAttempts, limit int) (int, error)
}

// WebhookReplayWorker re-applies billing webhook events whose processing failed.
type WebhookReplayWorker struct {
	db          *gorm.DB
	replayer    EventReplayer
	interval    time.Duration
	maxAttempts int
}

func NewWebhookReplayWorker(db *gorm.DB, replayer EventReplayer, interval time.Duration, maxAttempts int) *WebhookReplayWorker {
	return &WebhookReplayWorker{db: db, replayer: replayer, interval: interval, maxAttempts: maxAttempts}
}

func (w *WebhookReplayWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *WebhookReplayWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("webhook replay worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce replays one batch.
func (w *WebhookReplayWorker) RunOnce(ctx context.Context) int {
	db := w.db
	if db != nil {
		db = db.WithContext(ctx)
	}
	n, err := w.replayer.ReplayFailedEvents(ctx, db, w.maxAttempts, replayBatchSize)
	if err != nil {
		logger.WorkerLog("webhook_replay", "replay", err)
	} else if n > 0 {
		logger.Info("replayed webhook events", "count", n)
	}
	return n
}
