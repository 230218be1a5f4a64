package mailer

import (
	"context"
	"errors"
	"fmt"
	"html"

	goGuard "github.com/MrEthical07/goGuard"
	"gopkg.in/gomail.v2"
)

// Config holds SMTP settings.
type Config struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	Subject  string `toml:"subject"`
}

// DefaultConfig returns submission-port defaults.
func DefaultConfig() Config {
	return Config{
		Host:    "localhost",
		Port:    587,
		Subject: "Reset your password",
	}
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTP implements goGuard.Mailer.
type SMTP struct {
	from    string
	subject string
	sender  sender
}

var _ goGuard.Mailer = (*SMTP)(nil)

func NewSMTP(cfg Config) (*SMTP, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, errors.New("mailer: host and port are required")
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	if from == "" {
		return nil, errors.New("mailer: from address is required")
	}
	subject := cfg.Subject
	if subject == "" {
		subject = DefaultConfig().Subject
	}
	return &SMTP{
		from:    from,
		subject: subject,
		sender:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

// SendPasswordResetEmail sends the reset link. gomail has no context support,
// so ctx is only checked before dialing.
func (s *SMTP) SendPasswordResetEmail(ctx context.Context, address, link string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", address)
	m.SetHeader("Subject", s.subject)
	m.SetBody("text/plain", resetText(link))
	m.AddAlternative("text/html", resetHTML(link))
	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

func resetText(link string) string {
	return "We received a request to reset your password.\n\n" +
		"Open this link within one hour to choose a new password:\n" + link + "\n\n" +
		"If you did not ask for this, you can ignore this email."
}

func resetHTML(link string) string {
	l := html.EscapeString(link)
	return `<p>We received a request to reset your password.</p>` +
		`<p><a href="` + l + `">Choose a new password</a> (valid for one hour).</p>` +
		`<p>If you did not ask for this, you can ignore this email.</p>`
}
