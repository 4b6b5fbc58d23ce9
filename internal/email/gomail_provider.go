package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/marcusgoll/cfipros-web-sub000/internal/logger"
)

// Dialer is the part of gomail.Dialer the provider needs.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type GomailProvider struct {
	config    SMTPConfig
	dialer    Dialer
	templates *TemplateManager
}

func NewGomailProvider(cfg SMTPConfig, templates *TemplateManager) (*GomailProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &GomailProvider{config: cfg, dialer: d, templates: templates}, nil
}

// WithDialer swaps the SMTP dialer.
func (p *GomailProvider) WithDialer(d Dialer) *GomailProvider {
	p.dialer = d
	return p
}

func (p *GomailProvider) Send(ctx context.Context, msg *Email) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("email: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	from := msg.From
	if from == "" {
		from = p.config.FromEmail
	}
	if p.config.FromName != "" && msg.From == "" {
		m.SetAddressHeader("From", from, p.config.FromName)
	} else {
		m.SetHeader("From", from)
	}
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	if msg.HTMLBody != "" {
		m.SetBody("text/html", msg.HTMLBody)
		if msg.Body != "" {
			m.AddAlternative("text/plain", msg.Body)
		}
	} else {
		m.SetBody("text/plain", msg.Body)
	}

	if err := p.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("email: send to %v: %w", msg.To, err)
	}
	logger.CtxInfo(ctx, "email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

func (p *GomailProvider) SendTemplate(ctx context.Context, to []string, subject, templateName string, data TemplateData) error {
	vars := TemplateData{"Subject": subject}
	for k, v := range data {
		vars[k] = v
	}
	html, err := p.templates.Render(templateName, vars)
	if err != nil {
		return err
	}
	return p.Send(ctx, &Email{To: to, Subject: subject, HTMLBody: html})
}
