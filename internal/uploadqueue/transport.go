package uploadqueue

import "context"

//go:generate mockgen -source=transport.go -destination=transport_mock.go -package=uploadqueue

// ProgressFunc receives per-file progress in percent (0..100), keyed by client id.
type ProgressFunc func(clientID string, percent int)

// FileResult is one entry of the server's batch response. OriginalName echoes
// the client-supplied form key, which is the record's client id.
type FileResult struct {
	Success      bool   `json:"success"`
	OriginalName string `json:"originalName"`
	FileID       string `json:"fileId,omitempty"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
}

type BatchResult struct {
	Files          []FileResult `json:"files"`
	OverallSuccess bool         `json:"overallSuccess"`
}

// Transport sends a batch of files keyed by client id. A returned error means
// the batch as a whole failed; per-file failures are reported in BatchResult.
type Transport interface {
	Upload(ctx context.Context, files map[string]File, onProgress ProgressFunc) (*BatchResult, error)
}
