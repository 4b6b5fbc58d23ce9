package workers

import (
	"context"
	"sync"

	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
)

type Job func(ctx context.Context) error

// WorkerPool runs jobs on a fixed number of goroutines fed by a bounded channel.
type WorkerPool struct {
	workerCount int
	jobChan     chan Job
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
}

func NewWorkerPool(workerCount, queueSize int) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = workerCount * 2
	}
	return &WorkerPool{
		workerCount: workerCount,
		jobChan:     make(chan Job, queueSize),
	}
}

// Start launches the workers. Jobs see ctx's values but not its cancellation;
// workers drain the queue until Stop closes it.
func (wp *WorkerPool) Start(ctx context.Context) {
	logger.Info("starting worker pool", "worker_count", wp.workerCount, "queue_size", cap(wp.jobChan))
	jobCtx := context.WithoutCancel(ctx)
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(jobCtx, i)
	}
}

// Stop stops accepting jobs and waits for queued ones to finish.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if !wp.closed {
		wp.closed = true
		close(wp.jobChan)
	}
	wp.mu.Unlock()
	wp.wg.Wait()
	logger.Info("worker pool stopped")
}

// TrySubmit reports false when the queue is full or the pool is stopped.
func (wp *WorkerPool) TrySubmit(job Job) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return false
	}
	select {
	case wp.jobChan <- job:
		return true
	default:
		return false
	}
}

// Pending is the number of queued jobs not yet picked up.
func (wp *WorkerPool) Pending() int {
	return len(wp.jobChan)
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log := logger.With("worker_id", id)

	for job := range wp.jobChan {
		if err := job(ctx); err != nil {
			log.Error("job execution failed", "error", err)
		}
	}
	log.Debug("worker stopped, queue drained")
}
