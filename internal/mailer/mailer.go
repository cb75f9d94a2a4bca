// Package mailer delivers the email-verification and password-reset links.
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/zaqqye/applytrack/internal/config"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	SendVerification(ctx context.Context, to, displayName, token string) error
	SendPasswordReset(ctx context.Context, to, token string) error
}

// sender is the transport behind Templated.
type sender interface {
	send(ctx context.Context, msg Message) error
}

// Templated renders the messages and hands them to a transport.
type Templated struct {
	baseURL string
	tr      sender
}

// New returns an SMTP mailer when SMTP_HOST is configured, otherwise one that
// only logs the links.
func New(cfg *config.Config, log *zap.Logger) *Templated {
	var tr sender = &logSender{log: log}
	if cfg.SMTPHost != "" {
		tr = &smtpSender{
			addr: net.JoinHostPort(cfg.SMTPHost, cfg.SMTPPort),
			host: cfg.SMTPHost,
			user: cfg.SMTPUser,
			pass: cfg.SMTPPassword,
			from: cfg.SMTPFrom,
		}
	}
	return &Templated{baseURL: cfg.AppBaseURL, tr: tr}
}

func (m *Templated) SendVerification(ctx context.Context, to, displayName, token string) error {
	link := m.link("/verify-email", token)
	name := displayName
	if name == "" {
		name = "there"
	}
	return m.tr.send(ctx, Message{
		To:      to,
		Subject: "Verify your email address",
		Body: fmt.Sprintf("Hi %s,\n\nConfirm your email address to finish setting up your account:\n\n%s\n\n"+
			"If you did not sign up, you can ignore this message.\n", name, link),
	})
}

func (m *Templated) SendPasswordReset(ctx context.Context, to, token string) error {
	link := m.link("/password-reset", token)
	return m.tr.send(ctx, Message{
		To:      to,
		Subject: "Reset your password",
		Body: fmt.Sprintf("Someone asked to reset the password for this account.\n\n"+
			"Follow this link to choose a new one:\n\n%s\n\nIf it was not you, ignore this message.\n", link),
	})
}

func (m *Templated) link(path, token string) string {
	return m.baseURL + path + "?token=" + url.QueryEscape(token)
}

type logSender struct {
	log *zap.Logger
}

func (s *logSender) send(_ context.Context, msg Message) error {
	s.log.Info("mail not sent (SMTP not configured)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

type smtpSender struct {
	addr string
	host string
	user string
	pass string
	from string
}

func (s *smtpSender) send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}
	if err := smtp.SendMail(s.addr, auth, s.from, []string{msg.To}, render(s.from, msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func render(from string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
