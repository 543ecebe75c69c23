package email

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPProvider реализует Provider поверх gomail
type SMTPProvider struct {
	config Config
	dialer *gomail.Dialer
}

// NewSMTPProvider создает новый SMTP отправитель
func NewSMTPProvider(config Config) (*SMTPProvider, error) {
	if config.SMTPHost == "" || config.FromEmail == "" {
		return nil, fmt.Errorf("invalid email config: smtp host and from address are required")
	}

	return &SMTPProvider{
		config: config,
		dialer: gomail.NewDialer(config.SMTPHost, config.SMTPPort, config.Username, config.Password),
	}, nil
}

// Send отправляет email
func (p *SMTPProvider) Send(email *Email) error {
	if len(email.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", p.config.FromEmail, p.config.FromName)
	m.SetHeader("To", email.To...)
	m.SetHeader("Subject", email.Subject)
	if email.HTMLBody != "" {
		m.SetBody("text/html", email.HTMLBody)
		if email.Body != "" {
			m.AddAlternative("text/plain", email.Body)
		}
	} else {
		m.SetBody("text/plain", email.Body)
	}

	return p.dialer.DialAndSend(m)
}

// SendVerification отправляет письмо с кодом подтверждения
func (p *SMTPProvider) SendVerification(to, username, token string) error {
	html, err := Render("verification", TemplateData{
		"Username": username,
		"Token":    token,
	})
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	return p.Send(&Email{
		To:       []string{to},
		Subject:  "Подтвердите адрес электронной почты",
		HTMLBody: html,
	})
}

// SendSubscriptionStatus уведомляет о смене статуса подписки
func (p *SMTPProvider) SendSubscriptionStatus(to, plan, status, notes string) error {
	html, err := Render("subscription_status", TemplateData{
		"Plan":   plan,
		"Status": status,
		"Notes":  notes,
	})
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	return p.Send(&Email{
		To:       []string{to},
		Subject:  "Статус вашей подписки изменен",
		HTMLBody: html,
	})
}
