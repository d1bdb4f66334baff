// Package mail delivers account verification codes.
package mail

import (
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
)

// Mailer sends a verification code to an address. Usernames double as
// email addresses, so the recipient is the username itself.
type Mailer interface {
	SendVerificationCode(to, code string) error
}

// SMTPConfig carries the connection settings for an SMTP relay.
// Addr is host:port.
type SMTPConfig struct {
	Addr     string
	Username string
	Password string
}

// SMTPMailer sends codes through an authenticated SMTP relay.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) SendVerificationCode(to, code string) error {
	host, _, err := net.SplitHostPort(m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("invalid smtp addr %q: %w", m.cfg.Addr, err)
	}

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, host)

	msg := []byte("From: " + m.cfg.Username + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: Verify your account\r\n\r\n" +
		"Your verification code is " + code + "\r\n")

	if err := smtp.SendMail(m.cfg.Addr, auth, m.cfg.Username, []string{to}, msg); err != nil {
		return fmt.Errorf("send verification mail: %w", err)
	}
	return nil
}

// LogMailer writes codes to the log instead of sending mail. Used in
// development when no SMTP relay is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) SendVerificationCode(to, code string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("verification code issued", "to", to, "code", code)
	return nil
}
