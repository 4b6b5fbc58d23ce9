package repositories

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
)

var ErrOcrResultNotFound = errors.New("ocr result not found")

type OcrResultRepository interface {
	// Save inserts or replaces the result for result.FileID.
	Save(db *gorm.DB, result *models.OcrResult) error
	FindByFileID(db *gorm.DB, fileID string) (*models.OcrResult, error)
	MarkArchived(db *gorm.DB, fileID string) error
}

type OcrResultRepositoryImpl struct{}

func NewOcrResultRepository() OcrResultRepository {
	return &OcrResultRepositoryImpl{}
}

func (r *OcrResultRepositoryImpl) Save(db *gorm.DB, result *models.OcrResult) error {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "file_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "raw_text", "error_message", "error_kind",
			"model_used", "attempts", "completed_at", "updated_at",
		}),
	}).Create(result).Error
}

func (r *OcrResultRepositoryImpl) FindByFileID(db *gorm.DB, fileID string) (*models.OcrResult, error) {
	var result models.OcrResult
	if err := db.Where("file_id = ?", fileID).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOcrResultNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *OcrResultRepositoryImpl) MarkArchived(db *gorm.DB, fileID string) error {
	return db.Model(&models.OcrResult{}).Where("file_id = ?", fileID).Update("archived_at", gorm.Expr("NOW()")).Error
}
