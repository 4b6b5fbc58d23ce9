package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/marcusgoll/cfipros-web-sub000/internal/auth"
	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
	"github.com/marcusgoll/cfipros-web-sub000/internal/repositories"
	"github.com/marcusgoll/cfipros-web-sub000/internal/services/dto"
	"github.com/marcusgoll/cfipros-web-sub000/pkg/apperrors"
)

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	GenerateToken(userID, role string) (string, time.Time, error)
}

type AuthService interface {
	Signup(ctx context.Context, db *gorm.DB, req *dto.SignupRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, db *gorm.DB, req *dto.LoginRequest) (*dto.AuthResponse, error)
}

type authService struct {
	userRepo   repositories.UserRepository
	schoolRepo repositories.SchoolRepository
	tokens     TokenIssuer
	transact   txRunner
}

func NewAuthService(
	userRepo repositories.UserRepository,
	schoolRepo repositories.SchoolRepository,
	tokens TokenIssuer,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		schoolRepo: schoolRepo,
		tokens:     tokens,
		transact:   runInTransaction,
	}
}

// Signup creates the user and, for school admins, their school in one transaction.
func (s *authService) Signup(ctx context.Context, db *gorm.DB, req *dto.SignupRequest) (*dto.AuthResponse, error) {
	if !req.Role.IsValid() {
		return nil, apperrors.ErrInvalidUserRole
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, apperrors.ErrWeakPassword
	}
	schoolName := strings.TrimSpace(req.SchoolName)
	if req.Role == models.UserRoleSchoolAdmin && schoolName == "" {
		return nil, apperrors.ErrSchoolNameRequired
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Status:       models.UserStatusActive,
	}

	err = s.transact(db, func(tx *gorm.DB) error {
		if err := s.userRepo.Create(tx, user); err != nil {
			return err
		}
		if req.Role != models.UserRoleSchoolAdmin {
			return nil
		}

		school := &models.School{Name: schoolName, OwnerID: user.ID}
		if err := s.schoolRepo.Create(tx, school); err != nil {
			return err
		}
		if err := s.userRepo.SetSchool(tx, user.ID, school.ID); err != nil {
			return err
		}
		user.SchoolID = &school.ID
		user.School = school
		return nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrUserAlreadyExists) {
			return nil, apperrors.ErrEmailAlreadyExists
		}
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "user signed up", "user_id", user.ID, "role", user.Role)
	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, db *gorm.DB, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(db, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, apperrors.InternalError(err)
	}
	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if user.Status != models.UserStatusActive {
		return nil, apperrors.NewForbiddenError("Account is suspended")
	}

	return s.issue(user)
}

func (s *authService) issue(user *models.User) (*dto.AuthResponse, error) {
	token, expiresAt, err := s.tokens.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return &dto.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      dto.NewUserResponse(user),
	}, nil
}
