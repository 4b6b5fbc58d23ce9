package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
	"github.com/marcusgoll/cfipros-web-sub000/internal/repositories"
	"github.com/marcusgoll/cfipros-web-sub000/internal/services/dto"
	"github.com/marcusgoll/cfipros-web-sub000/pkg/apperrors"
)

type ProfileService interface {
	GetProfile(ctx context.Context, db *gorm.DB, userID string) (*dto.ProfileResponse, error)
	UpdateProfile(ctx context.Context, db *gorm.DB, userID string, req *dto.UpdateProfileRequest) (*dto.ProfileResponse, error)
}

type profileService struct {
	userRepo     repositories.UserRepository
	subscription SubscriptionService
}

func NewProfileService(userRepo repositories.UserRepository, subscription SubscriptionService) ProfileService {
	return &profileService{
		userRepo:     userRepo,
		subscription: subscription,
	}
}

func (s *profileService) GetProfile(ctx context.Context, db *gorm.DB, userID string) (*dto.ProfileResponse, error) {
	user, err := s.userRepo.FindByID(db, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, apperrors.InternalError(err)
	}

	resp := &dto.ProfileResponse{User: dto.NewUserResponse(user)}
	if user.School != nil {
		resp.School = &dto.SchoolResponse{ID: user.School.ID, Name: user.School.Name}
	}

	sub, err := s.subscription.FindLiveSubscription(db, user.ID, user.Role)
	switch {
	case err == nil:
		resp.Subscription = dto.NewSubscriptionResponse(sub)
	case !errors.Is(err, repositories.ErrSubscriptionNotFound):
		return nil, apperrors.InternalError(err)
	}
	return resp, nil
}

func (s *profileService) UpdateProfile(ctx context.Context, db *gorm.DB, userID string, req *dto.UpdateProfileRequest) (*dto.ProfileResponse, error) {
	user, err := s.userRepo.FindByID(db, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, apperrors.ErrNotFound(err)
		}
		return nil, apperrors.InternalError(err)
	}
	if req.CertificateNumber != nil && user.Role != models.UserRoleCFI {
		return nil, apperrors.ErrInvalidOperation("profile", "Only CFIs can set a certificate number")
	}

	upd := repositories.UserProfileUpdate{
		Phone:             trimmed(req.Phone),
		CertificateNumber: trimmed(req.CertificateNumber),
		FullName:          trimmed(req.FullName),
	}
	if err := s.userRepo.UpdateProfile(db, userID, upd); err != nil {
		return nil, apperrors.InternalError(err)
	}
	return s.GetProfile(ctx, db, userID)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
