// internal/message/email.go
//
// Outbound e-mail over SMTP.
//
// Context
//   The forms dispatcher notifies the sales inbox when a lead arrives.  Sends
//   are synchronous so the caller learns about failures and can report the
//   submission as failed instead of silently dropping it.
//
// Style
//   Two-space sentence spacing, Oxford comma, concise inline notes.
//
//------------------------------------------------------------------------------

package message

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// Email represents one outbound message.
type Email struct {
	To      []string
	ReplyTo string
	Subject string
	Text    string
	HTML    string // preferred body when set
}

// Mailer sends Email values.
type Mailer interface {
	SendEmail(ctx context.Context, msg Email) error
}

// SMTPConfig holds relay settings.  Password may be empty for relays that
// accept unauthenticated submissions from trusted hosts.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer delivers through one SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer returns a mailer for cfg.  Host and From are required.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("smtp: host and from are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}, nil
}

// SendEmail builds a MIME message and hands it to the relay.  ctx is checked
// before dialing; net/smtp offers no way to abort a send in progress.
func (m *SMTPMailer) SendEmail(ctx context.Context, msg Email) error {
	if len(msg.To) == 0 {
		return errors.New("smtp: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprint(m.cfg.Port))
	if err := m.send(addr, auth, m.cfg.From, msg.To, buildMIME(m.cfg.From, msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// buildMIME renders headers and body.  Header values are stripped of CR and
// LF so user input cannot inject headers.
func buildMIME(from string, msg Email) []byte {
	var b strings.Builder
	hdr := func(k, v string) {
		v = strings.NewReplacer("\r", "", "\n", "").Replace(v)
		b.WriteString(k + ": " + v + "\r\n")
	}

	hdr("From", from)
	hdr("To", strings.Join(msg.To, ", "))
	if msg.ReplyTo != "" {
		hdr("Reply-To", msg.ReplyTo)
	}
	hdr("Subject", msg.Subject)
	hdr("MIME-Version", "1.0")
	if msg.HTML != "" {
		hdr("Content-Type", "text/html; charset=UTF-8")
		b.WriteString("\r\n" + msg.HTML)
	} else {
		hdr("Content-Type", "text/plain; charset=UTF-8")
		b.WriteString("\r\n" + msg.Text)
	}
	return []byte(b.String())
}
