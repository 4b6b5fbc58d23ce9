package repositories

import (
	"errors"

	"gorm.io/gorm"

	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
)

var ErrSchoolNotFound = errors.New("school not found")

type SchoolRepository interface {
	Create(db *gorm.DB, school *models.School) error
	FindByID(db *gorm.DB, id string) (*models.School, error)
	FindByOwner(db *gorm.DB, ownerID string) (*models.School, error)
}

type SchoolRepositoryImpl struct{}

func NewSchoolRepository() SchoolRepository {
	return &SchoolRepositoryImpl{}
}

func (r *SchoolRepositoryImpl) Create(db *gorm.DB, school *models.School) error {
	return db.Create(school).Error
}

func (r *SchoolRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.School, error) {
	var school models.School
	if err := db.First(&school, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSchoolNotFound
		}
		return nil, err
	}
	return &school, nil
}

func (r *SchoolRepositoryImpl) FindByOwner(db *gorm.DB, ownerID string) (*models.School, error) {
	var school models.School
	if err := db.Where("owner_id = ?", ownerID).Order("created_at").First(&school).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSchoolNotFound
		}
		return nil, err
	}
	return &school, nil
}
