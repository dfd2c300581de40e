package email

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/servicehq/platform-api/internal/config"
)

type Service interface {
	SendWelcome(ctx context.Context, email string, name string) error
	SendPaymentFailed(ctx context.Context, email string, orgName string) error
	SendTrialEnding(ctx context.Context, email string, orgName string, daysLeft int) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func NewService(cfg config.SMTPConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendWelcome(ctx context.Context, email, name string) error {
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Welcome aboard. Your 14-day trial has started and every feature is
unlocked while it runs.</p>`, name)
	return s.send(ctx, email, "Welcome to ServiceHQ", body)
}

func (s *smtpService) SendPaymentFailed(ctx context.Context, email, orgName string) error {
	body := fmt.Sprintf(`<p>Hi,</p>
<p>The latest payment for %s did not go through. Please update your
payment method to keep your plan's features; until then the account
runs on the free plan.</p>`, orgName)
	return s.send(ctx, email, "Payment failed", body)
}

func (s *smtpService) SendTrialEnding(ctx context.Context, email, orgName string, daysLeft int) error {
	body := fmt.Sprintf(`<p>Hi,</p>
<p>The trial for %s ends in %d day(s). Pick a plan to keep the features
you are using.</p>`, orgName, daysLeft)
	return s.send(ctx, email, "Your trial is ending soon", body)
}

func (s *smtpService) SendCustom(ctx context.Context, to, subject, content string) error {
	return s.send(ctx, to, subject, content)
}

func (s *smtpService) send(ctx context.Context, to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		log.Error().Err(err).Str("to", to).Str("subject", subject).Msg("failed to send email")
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// NoopService discards all mail. Used when SMTP is not configured.
type NoopService struct{}

func (NoopService) SendWelcome(ctx context.Context, email, name string) error { return nil }
func (NoopService) SendPaymentFailed(ctx context.Context, email, orgName string) error {
	return nil
}
func (NoopService) SendTrialEnding(ctx context.Context, email, orgName string, daysLeft int) error {
	return nil
}
func (NoopService) SendCustom(ctx context.Context, to, subject, content string) error { return nil }
