// Package mail delivers transactional email: today only password reset codes.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/memberhub/memberhub/pkg/idx"
	"github.com/memberhub/memberhub/pkg/slogx"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// SMTPConfig is read once at start and never mutated.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer submits mail to a relay with PLAIN auth, upgrading to TLS when
// the server offers STARTTLS.
type SMTPMailer struct {
	cfg  SMTPConfig
	send sendFunc
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, m.cfg.From, []string{msg.To}, m.render(msg, time.Now())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", addr, err)
	}
	slogx.FromContext(ctx).Info("mail sent", "subject", msg.Subject)
	return nil
}

func (m *SMTPMailer) render(msg Message, now time.Time) []byte {
	domain := m.cfg.Host
	if at := strings.LastIndex(m.cfg.From, "@"); at >= 0 {
		domain = m.cfg.From[at+1:]
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", idx.NewAt(now), domain)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return b.Bytes()
}

// LogMailer records that a message would have been sent. The body is never
// logged since it carries the reset code.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) Send(ctx context.Context, msg Message) error {
	log := m.Logger
	if log == nil {
		log = slogx.FromContext(ctx)
	}
	log.Warn("smtp not configured, mail dropped", "subject", msg.Subject)
	return nil
}
