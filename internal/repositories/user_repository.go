package repositories

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

type UserRepository interface {
	Create(db *gorm.DB, user *models.User) error
	FindByID(db *gorm.DB, id string) (*models.User, error)
	FindByEmail(db *gorm.DB, email string) (*models.User, error)
	UpdateProfile(db *gorm.DB, userID string, fields UserProfileUpdate) error
	SetSchool(db *gorm.DB, userID, schoolID string) error
}

// UserProfileUpdate lists the editable profile columns; nil fields are left as is.
type UserProfileUpdate struct {
	FullName          *string
	Phone             *string
	CertificateNumber *string
}

type UserRepositoryImpl struct{}

func NewUserRepository() UserRepository {
	return &UserRepositoryImpl{}
}

func (r *UserRepositoryImpl) Create(db *gorm.DB, user *models.User) error {
	user.Email = normalizeEmail(user.Email)
	if err := db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrUserAlreadyExists
		}
		return err
	}
	return nil
}

func (r *UserRepositoryImpl) FindByID(db *gorm.DB, id string) (*models.User, error) {
	var user models.User
	if err := db.Preload("School").First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) FindByEmail(db *gorm.DB, email string) (*models.User, error) {
	var user models.User
	if err := db.Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) UpdateProfile(db *gorm.DB, userID string, fields UserProfileUpdate) error {
	updates := map[string]interface{}{}
	if fields.FullName != nil {
		updates["full_name"] = *fields.FullName
	}
	if fields.Phone != nil {
		updates["phone"] = *fields.Phone
	}
	if fields.CertificateNumber != nil {
		updates["certificate_number"] = *fields.CertificateNumber
	}
	if len(updates) == 0 {
		return nil
	}

	result := db.Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepositoryImpl) SetSchool(db *gorm.DB, userID, schoolID string) error {
	result := db.Model(&models.User{}).Where("id = ?", userID).Update("school_id", schoolID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
