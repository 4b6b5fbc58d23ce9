package ocr

import "context"

//go:generate mockgen -source=abstract.go -destination=abstract_mock.go -package=ocr

// Extractor performs a single text extraction attempt. Failures are reported
// in the Result, never as a Go error.
type Extractor interface {
	Extract(ctx context.Context, req Request) Result
}
