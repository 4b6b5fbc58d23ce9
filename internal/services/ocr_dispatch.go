package services

import (
	"context"
	"errors"
	"time"
)

// ErrDispatchQueueFull is returned by dispatchers that cannot accept more work.
var ErrDispatchQueueFull = errors.New("ocr dispatch queue is full")

// OCRJob is everything a worker needs to run OCR for one persisted upload.
type OCRJob struct {
	FileID       string    `json:"fileId"`
	UserID       string    `json:"userId"`
	TempPath     string    `json:"tempPath"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	EnqueuedAt   time.Time `json:"enqueuedAt"`
}

// OCRDispatcher hands a job to background processing without waiting for it.
type OCRDispatcher interface {
	Dispatch(ctx context.Context, job OCRJob) error
}
