package dto

import (
	"time"

	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
)

type SignupRequest struct {
	Email      string          `json:"email" validate:"required,email"`
	Password   string          `json:"password" validate:"required,min=8"`
	FullName   string          `json:"fullName" validate:"required,min=2,max=100"`
	Role       models.UserRole `json:"role" validate:"required,is-user-role"`
	SchoolName string          `json:"schoolName" validate:"omitempty,max=200"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      *UserResponse `json:"user"`
}

type UserResponse struct {
	ID                string            `json:"id"`
	Email             string            `json:"email"`
	FullName          string            `json:"fullName"`
	Role              models.UserRole   `json:"role"`
	Status            models.UserStatus `json:"status"`
	Phone             string            `json:"phone,omitempty"`
	CertificateNumber string            `json:"certificateNumber,omitempty"`
	SchoolID          *string           `json:"schoolId,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
}

func NewUserResponse(u *models.User) *UserResponse {
	return &UserResponse{
		ID:                u.ID,
		Email:             u.Email,
		FullName:          u.FullName,
		Role:              u.Role,
		Status:            u.Status,
		Phone:             u.Phone,
		CertificateNumber: u.CertificateNumber,
		SchoolID:          u.SchoolID,
		CreatedAt:         u.CreatedAt,
	}
}
