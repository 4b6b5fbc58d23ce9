package repositories

import (
	"errors"

	"gorm.io/gorm"

	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
)

var ErrUploadNotFound = errors.New("upload not found")

type UploadRepository interface {
	Create(db *gorm.DB, upload *models.Upload) error
	FindByID(db *gorm.DB, id string) (*models.Upload, error)
	FindByIDForUser(db *gorm.DB, id, userID string) (*models.Upload, error)
	ListByUser(db *gorm.DB, userID string, page, pageSize int) ([]models.Upload, int64, error)
	UpdateStatus(db *gorm.DB, id string, status models.UploadStatus) error
	SetArchivePath(db *gorm.DB, id, archivePath string) error
}

type UploadRepositoryImpl struct{}

func NewUploadRepository() UploadRepository {
	return &UploadRepositoryImpl{}
}

func (r *UploadRepositoryImpl) Create(db *gorm.DB, upload *models.Upload) error {
	return db.Create(upload).Error
}

func (r *UploadRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.Upload, error) {
	var upload models.Upload
	if err := db.First(&upload, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUploadNotFound
		}
		return nil, err
	}
	return &upload, nil
}

func (r *UploadRepositoryImpl) FindByIDForUser(db *gorm.DB, id, userID string) (*models.Upload, error) {
	var upload models.Upload
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&upload).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUploadNotFound
		}
		return nil, err
	}
	return &upload, nil
}

func (r *UploadRepositoryImpl) ListByUser(db *gorm.DB, userID string, page, pageSize int) ([]models.Upload, int64, error) {
	var (
		uploads []models.Upload
		total   int64
	)
	query := db.Model(&models.Upload{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&uploads).Error
	return uploads, total, err
}

func (r *UploadRepositoryImpl) UpdateStatus(db *gorm.DB, id string, status models.UploadStatus) error {
	result := db.Model(&models.Upload{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUploadNotFound
	}
	return nil
}

func (r *UploadRepositoryImpl) SetArchivePath(db *gorm.DB, id, archivePath string) error {
	return db.Model(&models.Upload{}).Where("id = ?", id).Update("archive_path", archivePath).Error
}
