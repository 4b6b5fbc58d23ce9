package workers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
	"github.com/marcusgoll/cfipros-web-sub000/internal/ocr"
	"github.com/marcusgoll/cfipros-web-sub000/internal/repositories"
	"github.com/marcusgoll/cfipros-web-sub000/internal/services"
	"github.com/marcusgoll/cfipros-web-sub000/internal/services/dto"
	"github.com/marcusgoll/cfipros-web-sub000/internal/storage"
	"github.com/marcusgoll/cfipros-web-sub000/ws"
)

// Orchestrator runs OCR for one file with retries.
type Orchestrator interface {
	ProcessWithRetry(ctx context.Context, req ocr.Request, maxRetries int) ocr.Result
}

// Notifier pushes a message to a user's live connections.
type Notifier interface {
	SendToUser(userID string, msg any) bool
}

// OCRJobProcessorDeps wires an OCRJobProcessor. Archive, Notifier and Mailer are optional.
type OCRJobProcessorDeps struct {
	DB           *gorm.DB
	Uploads      repositories.UploadRepository
	Results      repositories.OcrResultRepository
	Users        repositories.UserRepository
	Orchestrator Orchestrator
	Temp         storage.Storage
	Archive      storage.Storage
	Notifier     Notifier
	Mailer       services.EmailService
	MaxRetries   int
	Timeout      time.Duration
}

type OCRJobProcessor struct {
	deps OCRJobProcessorDeps
	now  func() time.Time
}

func NewOCRJobProcessor(deps OCRJobProcessorDeps) *OCRJobProcessor {
	return &OCRJobProcessor{deps: deps, now: time.Now}
}

// Process runs OCR for one upload and persists the outcome. A returned error
// means the result could not be stored.
func (p *OCRJobProcessor) Process(ctx context.Context, job services.OCRJob) error {
	log := logger.FromContext(ctx).With("file_id", job.FileID, "user_id", job.UserID)
	db := p.deps.DB
	if db != nil {
		db = db.WithContext(ctx)
	}
	tempKey := filepath.Base(job.TempPath)

	if err := p.deps.Uploads.UpdateStatus(db, job.FileID, models.UploadStatusProcessing); err != nil {
		if errors.Is(err, repositories.ErrUploadNotFound) {
			log.Warn("upload no longer exists, dropping OCR job")
			p.removeTemp(ctx, tempKey)
			return nil
		}
		return fmt.Errorf("mark upload %s processing: %w", job.FileID, err)
	}

	ocrCtx := ctx
	if p.deps.Timeout > 0 {
		var cancel context.CancelFunc
		ocrCtx, cancel = context.WithTimeout(ctx, p.deps.Timeout)
		defer cancel()
	}
	started := p.now()
	res := p.deps.Orchestrator.ProcessWithRetry(ocrCtx, ocr.Request{
		FileID:       job.FileID,
		FilePath:     job.TempPath,
		OriginalName: job.OriginalName,
		UserID:       job.UserID,
	}, p.deps.MaxRetries)

	record := &models.OcrResult{
		FileID:       job.FileID,
		UserID:       job.UserID,
		Status:       string(res.Status),
		RawText:      res.RawText,
		ErrorMessage: res.ErrorMessage,
		ErrorKind:    res.Kind.String(),
		ModelUsed:    res.ModelUsed,
		Attempts:     res.Attempts,
		CompletedAt:  p.now(),
	}
	if err := p.deps.Results.Save(db, record); err != nil {
		if uerr := p.deps.Uploads.UpdateStatus(db, job.FileID, models.UploadStatusFailed); uerr != nil {
			log.Error("failed to mark upload failed", "error", uerr)
		}
		return fmt.Errorf("save OCR result for %s: %w", job.FileID, err)
	}

	status := models.UploadStatusFailed
	if res.Succeeded() {
		status = models.UploadStatusCompleted
	}
	if err := p.deps.Uploads.UpdateStatus(db, job.FileID, status); err != nil {
		log.Error("failed to update upload status", "status", status, "error", err)
	}
	log.Info("OCR finished",
		"status", res.Status,
		"attempts", res.Attempts,
		"duration", p.now().Sub(started),
	)

	keepTemp := false
	if res.Succeeded() && p.deps.Archive != nil {
		if err := p.archive(ctx, db, job, tempKey); err != nil {
			log.Error("failed to archive upload, keeping temp file", "error", err)
			keepTemp = true
		}
	}
	if !keepTemp {
		p.removeTemp(ctx, tempKey)
	}

	p.notify(ctx, db, job, record, status)
	return nil
}

func (p *OCRJobProcessor) archive(ctx context.Context, db *gorm.DB, job services.OCRJob, tempKey string) error {
	src, err := p.deps.Temp.Get(ctx, tempKey)
	if err != nil {
		return err
	}
	defer src.Close()

	key := storage.ArchiveKey(job.UserID, job.FileID, filepath.Ext(tempKey))
	if err := p.deps.Archive.Save(ctx, key, src, job.MimeType); err != nil {
		return err
	}
	if err := p.deps.Uploads.SetArchivePath(db, job.FileID, key); err != nil {
		return err
	}
	return p.deps.Results.MarkArchived(db, job.FileID)
}

func (p *OCRJobProcessor) removeTemp(ctx context.Context, key string) {
	if err := p.deps.Temp.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		logger.CtxWarn(ctx, "failed to remove temp upload", "key", key, "error", err)
	}
}

func (p *OCRJobProcessor) notify(ctx context.Context, db *gorm.DB, job services.OCRJob, record *models.OcrResult, status models.UploadStatus) {
	if p.deps.Notifier != nil {
		p.deps.Notifier.SendToUser(job.UserID, ws.Message{
			Type: ws.MessageOcrCompleted,
			Data: dto.OcrStatusResponse{
				FileID: job.FileID,
				Status: status,
				Result: dto.NewOcrResultResponse(record),
			},
		})
	}

	if p.deps.Mailer == nil {
		return
	}
	user, err := p.deps.Users.FindByID(db, job.UserID)
	if err != nil {
		logger.CtxWarn(ctx, "cannot email OCR result, user lookup failed", "error", err)
		return
	}
	upload := &models.Upload{OriginalName: job.OriginalName}
	if err := p.deps.Mailer.SendOcrFinished(ctx, user, upload, record); err != nil {
		logger.CtxWarn(ctx, "failed to send OCR email", "error", err)
	}
}
