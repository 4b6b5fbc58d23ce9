package uploadqueue

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/marcusgoll/cfipros-web-sub000/internal/validator"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusUploading      Status = "uploading"
	StatusUploadedQueued Status = "uploaded_queued"
	StatusErrorUpload    Status = "error_upload"
)

const msgNoResult = "No result returned for file"

// File describes a local file waiting to be uploaded. Open is called by the
// transport when the bytes are needed.
type File struct {
	Name string
	Size int64
	Type string
	Open func() (io.ReadCloser, error)
}

func (f File) descriptor() validator.FileInfo {
	return validator.FileInfo{Name: f.Name, Bytes: f.Size, Type: f.Type}
}

// FileFromPath builds a File for a path on disk with the given declared type.
func FileFromPath(path, contentType string) (File, error) {
	st, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	return File{
		Name: filepath.Base(path),
		Size: st.Size(),
		Type: contentType,
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

type Record struct {
	ClientID     string
	File         File
	Status       Status
	Progress     int
	ErrorMessage string
}

// Queue holds upload records and moves them through
// pending -> uploading -> uploaded_queued | error_upload.
// Invalid files enter as error_upload and stay there.
type Queue struct {
	mu        sync.Mutex
	records   []Record
	transport Transport
	newID     func() string
	watcher   func(overall int)
}

func New(transport Transport) *Queue {
	return &Queue{
		transport: transport,
		newID:     uuid.NewString,
	}
}

// OnProgress registers fn to receive OverallProgress after every progress
// report from the transport. fn runs on the transport's goroutine.
func (q *Queue) OnProgress(fn func(overall int)) {
	q.mu.Lock()
	q.watcher = fn
	q.mu.Unlock()
}

// AddFiles appends exactly one record per input and returns the new records.
func (q *Queue) AddFiles(files ...File) []Record {
	added := make([]Record, 0, len(files))
	for _, f := range files {
		rec := Record{
			ClientID: q.newID(),
			File:     f,
			Status:   StatusPending,
		}
		if res := validator.ValidateFile(f.descriptor()); !res.Valid {
			rec.Status = StatusErrorUpload
			rec.ErrorMessage = res.Message()
		}
		added = append(added, rec)
	}

	q.mu.Lock()
	q.records = append(q.records, added...)
	q.mu.Unlock()
	return added
}

func (q *Queue) RemoveFile(clientID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, rec := range q.records {
		if rec.ClientID == clientID {
			q.records = append(q.records[:i], q.records[i+1:]...)
			return
		}
	}
}

func (q *Queue) ClearFiles() {
	q.mu.Lock()
	q.records = nil
	q.mu.Unlock()
}

// Records returns a snapshot copy.
func (q *Queue) Records() []Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Record, len(q.records))
	copy(out, q.records)
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// OverallProgress is the rounded mean progress over every record, finished or not.
func (q *Queue) OverallProgress() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.overallLocked()
}

func (q *Queue) overallLocked() int {
	if len(q.records) == 0 {
		return 0
	}
	total := 0
	for _, rec := range q.records {
		total += rec.Progress
	}
	return int(math.Round(float64(total) / float64(len(q.records))))
}

// UploadAllFiles sends every pending record through the transport. With no
// pending records the transport is not called and an empty, unsuccessful batch
// is returned.
func (q *Queue) UploadAllFiles(ctx context.Context) BatchResult {
	q.mu.Lock()
	files := make(map[string]File)
	for i := range q.records {
		if q.records[i].Status != StatusPending {
			continue
		}
		q.records[i].Status = StatusUploading
		files[q.records[i].ClientID] = q.records[i].File
	}
	q.mu.Unlock()

	if len(files) == 0 {
		return BatchResult{}
	}

	res, err := q.transport.Upload(ctx, files, q.setProgress)
	if err == nil && res == nil {
		res = &BatchResult{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if err != nil {
		failed := BatchResult{Files: make([]FileResult, 0, len(files))}
		for i := range q.records {
			rec := &q.records[i]
			if _, ok := files[rec.ClientID]; !ok {
				continue
			}
			rec.Status = StatusErrorUpload
			rec.ErrorMessage = err.Error()
			failed.Files = append(failed.Files, FileResult{
				Success:      false,
				OriginalName: rec.ClientID,
				Error:        err.Error(),
			})
		}
		return failed
	}

	byClient := make(map[string]FileResult, len(res.Files))
	for _, fr := range res.Files {
		byClient[fr.OriginalName] = fr
	}
	for i := range q.records {
		rec := &q.records[i]
		if _, ok := files[rec.ClientID]; !ok {
			continue
		}
		fr, ok := byClient[rec.ClientID]
		switch {
		case !ok:
			rec.Status = StatusErrorUpload
			rec.ErrorMessage = msgNoResult
		case fr.Success:
			rec.Status = StatusUploadedQueued
			rec.Progress = 100
			rec.ErrorMessage = ""
		default:
			rec.Status = StatusErrorUpload
			rec.ErrorMessage = fr.Error
		}
	}
	return *res
}

func (q *Queue) setProgress(clientID string, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	q.mu.Lock()
	found := false
	for i := range q.records {
		if q.records[i].ClientID == clientID {
			q.records[i].Progress = percent
			found = true
			break
		}
	}
	watcher, overall := q.watcher, q.overallLocked()
	q.mu.Unlock()

	if found && watcher != nil {
		watcher(overall)
	}
}
