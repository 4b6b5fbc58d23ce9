package email

import (
	"context"

	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
)

// Provider sends email.
type Provider interface {
	Send(ctx context.Context, msg *Email) error
	SendTemplate(ctx context.Context, to []string, subject, templateName string, data TemplateData) error
}

// NoopProvider drops every message. Used when email is disabled.
type NoopProvider struct{}

func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

func (NoopProvider) Send(ctx context.Context, msg *Email) error {
	logger.CtxDebug(ctx, "email disabled, message dropped", "to", msg.To, "subject", msg.Subject)
	return nil
}

func (NoopProvider) SendTemplate(ctx context.Context, to []string, subject, templateName string, _ TemplateData) error {
	logger.CtxDebug(ctx, "email disabled, message dropped", "to", to, "template", templateName)
	return nil
}
