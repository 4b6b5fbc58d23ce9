package workers

import (
	"context"
	"time"

	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
)

const tempCleanupInterval = time.Hour

// TempSweeper deletes temp files older than a cutoff.
type TempSweeper interface {
	RemoveOlderThan(ctx context.Context, age time.Duration, now time.Time) (int, error)
}

// TempCleanupWorker removes temp uploads that were never processed or archived.
type TempCleanupWorker struct {
	sweeper  TempSweeper
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewTempCleanupWorker(sweeper TempSweeper, ttl time.Duration) *TempCleanupWorker {
	return &TempCleanupWorker{sweeper: sweeper, ttl: ttl, interval: tempCleanupInterval, now: time.Now}
}

func (w *TempCleanupWorker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Info("temp cleanup worker stopped")
				return
			case <-ticker.C:
				w.RunOnce(ctx)
			}
		}
	}()
}

func (w *TempCleanupWorker) RunOnce(ctx context.Context) int {
	n, err := w.sweeper.RemoveOlderThan(ctx, w.ttl, w.now())
	if err != nil {
		logger.WorkerLog("temp_cleanup", "sweep", err)
	}
	if n > 0 {
		logger.Info("removed stale temp uploads", "count", n)
	}
	return n
}
