package email

import "errors"

var ErrInvalidConfig = errors.New("email: invalid SMTP configuration")

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

func (c SMTPConfig) Validate() error {
	if c.Host == "" || c.FromEmail == "" {
		return ErrInvalidConfig
	}
	if c.Port <= 0 || c.Port > 65535 {
		return ErrInvalidConfig
	}
	return nil
}
