package services

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
	"github.com/marcusgoll/cfipros-web-sub000/internal/repositories"
	"github.com/marcusgoll/cfipros-web-sub000/internal/services/dto"
	"github.com/marcusgoll/cfipros-web-sub000/internal/validator"
	"github.com/marcusgoll/cfipros-web-sub000/pkg/apperrors"
)

const (
	MsgExpectedFile   = "Expected a file"
	MsgSaveFailed     = "Failed to save file"
	MsgQueueFailed    = "Failed to queue file for OCR processing"
	MsgUploadAccepted = "File uploaded successfully and queued for OCR processing"

	maxParallelEntries = 8
)

// UploadEntry is one multipart form entry. File is nil when the value was not a file.
type UploadEntry struct {
	Key  string
	File *multipart.FileHeader
}

// TempStore is the shared directory uploads are written to before OCR.
type TempStore interface {
	EnsureDir() error
	Save(ctx context.Context, key string, reader io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	FullPath(key string) (string, error)
}

type UploadService interface {
	PrepareTempDir(ctx context.Context) error
	ProcessUpload(ctx context.Context, db *gorm.DB, userID string, entries []UploadEntry) *dto.UploadBatchResponse
	ListUploads(ctx context.Context, db *gorm.DB, userID string, page, pageSize int) (*dto.UploadListResponse, error)
}

type uploadService struct {
	uploadRepo repositories.UploadRepository
	temp       TempStore
	dispatcher OCRDispatcher
	newID      func() string
	now        func() time.Time
}

func NewUploadService(uploadRepo repositories.UploadRepository, temp TempStore, dispatcher OCRDispatcher) UploadService {
	return &uploadService{
		uploadRepo: uploadRepo,
		temp:       temp,
		dispatcher: dispatcher,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

func (s *uploadService) PrepareTempDir(ctx context.Context) error {
	if err := s.temp.EnsureDir(); err != nil {
		logger.CtxError(ctx, "temp upload directory unavailable", "error", err)
		return apperrors.ErrTempStorageUnavailable.WithError(err)
	}
	return nil
}

// ProcessUpload handles every entry concurrently. One entry failing never
// affects the others, and OCR is only dispatched, never awaited.
func (s *uploadService) ProcessUpload(ctx context.Context, db *gorm.DB, userID string, entries []UploadEntry) *dto.UploadBatchResponse {
	results := make([]dto.UploadFileResult, len(entries))

	var g errgroup.Group
	g.SetLimit(maxParallelEntries)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			results[i] = s.processEntry(ctx, db, userID, entry)
			return nil
		})
	}
	_ = g.Wait()

	overall := len(results) > 0
	for _, r := range results {
		if !r.Success {
			overall = false
			break
		}
	}
	return &dto.UploadBatchResponse{Files: results, OverallSuccess: overall}
}

func (s *uploadService) processEntry(ctx context.Context, db *gorm.DB, userID string, entry UploadEntry) dto.UploadFileResult {
	fail := func(msg string) dto.UploadFileResult {
		return dto.UploadFileResult{Success: false, OriginalName: entry.Key, Error: msg}
	}
	if entry.File == nil {
		return fail(MsgExpectedFile)
	}

	hdr := entry.File
	contentType := hdr.Header.Get("Content-Type")
	check := validator.ValidateFile(validator.FileInfo{Name: hdr.Filename, Bytes: hdr.Size, Type: contentType})
	if !check.Valid {
		return fail(check.Message())
	}

	log := logger.FromContext(ctx).With("client_key", entry.Key, "user_id", userID)
	fileID := s.newID()
	key := fileID + fileExtension(hdr.Filename, contentType)

	if err := s.saveTemp(ctx, key, hdr, contentType); err != nil {
		log.Error("failed to save upload", "error", err)
		return fail(MsgSaveFailed)
	}
	tempPath, _ := s.temp.FullPath(key)

	upload := &models.Upload{
		BaseModel:    models.BaseModel{ID: fileID},
		UserID:       userID,
		ClientKey:    entry.Key,
		OriginalName: hdr.Filename,
		TempPath:     tempPath,
		MimeType:     contentType,
		Size:         hdr.Size,
		Status:       models.UploadStatusQueued,
	}
	if err := s.uploadRepo.Create(db, upload); err != nil {
		log.Error("failed to record upload", "error", err)
		s.discardTemp(ctx, key)
		return fail(MsgSaveFailed)
	}

	err := s.dispatcher.Dispatch(ctx, OCRJob{
		FileID:       fileID,
		UserID:       userID,
		TempPath:     tempPath,
		OriginalName: hdr.Filename,
		MimeType:     contentType,
		EnqueuedAt:   s.now(),
	})
	if err != nil {
		log.Error("failed to dispatch OCR job", "file_id", fileID, "error", err)
		if uerr := s.uploadRepo.UpdateStatus(db, fileID, models.UploadStatusFailed); uerr != nil {
			log.Error("failed to mark upload failed", "file_id", fileID, "error", uerr)
		}
		s.discardTemp(ctx, key)
		return fail(MsgQueueFailed)
	}

	log.Info("upload queued for OCR", "file_id", fileID, "size", hdr.Size)
	return dto.UploadFileResult{
		Success:      true,
		OriginalName: entry.Key,
		FileID:       fileID,
		Message:      MsgUploadAccepted,
	}
}

func (s *uploadService) saveTemp(ctx context.Context, key string, hdr *multipart.FileHeader, contentType string) error {
	src, err := hdr.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	return s.temp.Save(ctx, key, src, contentType)
}

func (s *uploadService) discardTemp(ctx context.Context, key string) {
	if err := s.temp.Delete(ctx, key); err != nil {
		logger.CtxWarn(ctx, "failed to remove temp upload", "key", key, "error", err)
	}
}

func (s *uploadService) ListUploads(ctx context.Context, db *gorm.DB, userID string, page, pageSize int) (*dto.UploadListResponse, error) {
	uploads, total, err := s.uploadRepo.ListByUser(db, userID, page, pageSize)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	items := make([]dto.UploadResponse, 0, len(uploads))
	for i := range uploads {
		items = append(items, dto.NewUploadResponse(&uploads[i]))
	}
	return &dto.UploadListResponse{
		Uploads:    items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}, nil
}

// fileExtension keeps the original extension, falling back to the declared type.
func fileExtension(name, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		return ext
	}
	if m := mimetype.Lookup(contentType); m != nil {
		return m.Extension()
	}
	return ""
}

// =========================================================================
// OCR results
// =========================================================================

type OcrResultService interface {
	GetOcrStatus(ctx context.Context, db *gorm.DB, userID, fileID string) (*dto.OcrStatusResponse, error)
}

type ocrResultService struct {
	uploadRepo repositories.UploadRepository
	resultRepo repositories.OcrResultRepository
}

func NewOcrResultService(uploadRepo repositories.UploadRepository, resultRepo repositories.OcrResultRepository) OcrResultService {
	return &ocrResultService{uploadRepo: uploadRepo, resultRepo: resultRepo}
}

// GetOcrStatus only serves the upload's owner; other users get not found.
func (s *ocrResultService) GetOcrStatus(ctx context.Context, db *gorm.DB, userID, fileID string) (*dto.OcrStatusResponse, error) {
	upload, err := s.uploadRepo.FindByIDForUser(db, fileID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUploadNotFound) {
			return nil, apperrors.ErrUploadNotFound
		}
		return nil, apperrors.InternalError(err)
	}

	resp := &dto.OcrStatusResponse{FileID: upload.ID, Status: upload.Status}
	result, err := s.resultRepo.FindByFileID(db, fileID)
	switch {
	case err == nil:
		resp.Result = dto.NewOcrResultResponse(result)
	case !errors.Is(err, repositories.ErrOcrResultNotFound):
		return nil, apperrors.InternalError(err)
	}
	return resp, nil
}
