package ocr

import (
	"context"
	"time"

	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
)

const (
	DefaultMaxRetries = 2
	BaseBackoff       = 1000 * time.Millisecond
)

const msgMaxRetries = "Maximum retry attempts reached"

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Orchestrator retries an Extractor on retryable failures with exponential backoff.
type Orchestrator struct {
	extractor   Extractor
	sleep       Sleeper
	baseBackoff time.Duration
}

type Option func(*Orchestrator)

func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

func WithBaseBackoff(d time.Duration) Option {
	return func(o *Orchestrator) { o.baseBackoff = d }
}

func NewOrchestrator(extractor Extractor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		extractor:   extractor,
		sleep:       contextSleep,
		baseBackoff: BaseBackoff,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Backoff is the wait before retry number attempt (1-based): base * 2^(attempt-1).
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return base << (attempt - 1)
}

// ProcessWithRetry makes at most 1+maxRetries attempts. Success and non-retryable
// failures return immediately; after exhaustion the last retryable failure is returned.
func (o *Orchestrator) ProcessWithRetry(ctx context.Context, req Request, maxRetries int) Result {
	if maxRetries < 0 {
		maxRetries = 0
	}
	log := logger.FromContext(ctx).With("file_id", req.FileID)

	var (
		lastErr *Result
		tries   int
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := Backoff(o.baseBackoff, attempt)
			log.Info("retrying OCR", "attempt", attempt+1, "backoff", wait)
			if err := o.sleep(ctx, wait); err != nil {
				break
			}
		}

		tries++
		res := o.extractor.Extract(ctx, req)
		res.FileID = req.FileID
		res.Attempts = tries

		switch {
		case res.Succeeded():
			return res
		case !res.Kind.Retryable():
			log.Warn("OCR failed with non-retryable error", "error", res.ErrorMessage, "attempt", tries)
			return res
		default:
			log.Warn("OCR API unavailable", "error", res.ErrorMessage, "attempt", tries)
			lastErr = &res
		}
	}

	if lastErr != nil {
		return *lastErr
	}
	if err := ctx.Err(); err != nil {
		res := Failure(req.FileID, KindUnavailable, err.Error())
		res.Attempts = tries
		return res
	}
	res := Failure(req.FileID, KindProcessing, msgMaxRetries)
	res.Attempts = tries
	return res
}
