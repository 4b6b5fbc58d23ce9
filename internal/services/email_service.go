package services

import (
	"context"

	"github.com/marcusgoll/cfipros-web-sub000/internal/email"
	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
	"github.com/marcusgoll/cfipros-web-sub000/internal/ocr"
)

// EmailService sends the account and OCR notification emails.
type EmailService interface {
	SendWelcome(ctx context.Context, user *models.User) error
	SendOcrFinished(ctx context.Context, user *models.User, upload *models.Upload, result *models.OcrResult) error
}

type emailService struct {
	provider email.Provider
}

func NewEmailService(provider email.Provider) EmailService {
	return &emailService{provider: provider}
}

func (s *emailService) SendWelcome(ctx context.Context, user *models.User) error {
	return s.provider.SendTemplate(ctx, []string{user.Email}, "Welcome to CFIPros", email.TemplateWelcome, email.TemplateData{
		"Name": displayName(user),
		"Role": string(user.Role),
	})
}

func (s *emailService) SendOcrFinished(ctx context.Context, user *models.User, upload *models.Upload, result *models.OcrResult) error {
	data := email.TemplateData{
		"Name":     displayName(user),
		"FileName": upload.OriginalName,
	}
	if ocr.Status(result.Status) == ocr.StatusSuccess {
		return s.provider.SendTemplate(ctx, []string{user.Email}, "Your results are ready", email.TemplateOcrCompleted, data)
	}
	data["Reason"] = result.ErrorMessage
	return s.provider.SendTemplate(ctx, []string{user.Email}, "We could not read your upload", email.TemplateOcrFailed, data)
}

func displayName(user *models.User) string {
	if user.FullName != "" {
		return user.FullName
	}
	return user.Email
}
