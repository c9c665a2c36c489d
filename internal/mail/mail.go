// Package mail delivers relayed messages and admin notifications. Messages
// are handed to an SMTP server and never written anywhere else.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"
)

// ErrNotConfigured is returned by New when SMTP is required but no host is set.
var ErrNotConfigured = errors.New("smtp host not configured")

// Message is a rendered e-mail.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// TLS is one of "mandatory", "opportunistic", "ssl" or "none".
	TLS string
}

// New returns an SMTP sender, or a LogSender when no host is configured.
func New(cfg Config, logger *slog.Logger) (Sender, error) {
	if cfg.Host == "" {
		logger.Warn("mail.host is empty, messages are logged instead of delivered")
		return &LogSender{logger: logger}, nil
	}
	return NewSMTPSender(cfg)
}

// SMTPSender delivers mail through one SMTP relay. It dials per message.
type SMTPSender struct {
	client *gomail.Client
	from   string
}

// NewSMTPSender builds a go-mail client from cfg.
func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, ErrNotConfigured
	}

	opts := []gomail.Option{}
	if cfg.Port != 0 {
		opts = append(opts, gomail.WithPort(cfg.Port))
	}
	switch cfg.TLS {
	case "", "mandatory":
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	case "opportunistic":
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	case "ssl":
		opts = append(opts, gomail.WithSSL())
	case "none":
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	default:
		return nil, fmt.Errorf("unknown mail.tls value %q", cfg.TLS)
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = DefaultFrom
	}
	return &SMTPSender{client: client, from: from}, nil
}

// DefaultFrom is the sender address used when mail.from is empty.
const DefaultFrom = `"cryAMS Notification" <noreply@cryams.local>`

// Send renders msg as a multipart message and delivers it.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := build(s.from, msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func build(from string, msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	if msg.Text != "" {
		m.SetBodyString(gomail.TypeTextPlain, msg.Text)
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	} else {
		m.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

// LogSender records that a message would have been sent. Bodies are never
// logged.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender returns a LogSender writing to logger.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if _, err := build(DefaultFrom, msg); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "mail not delivered (no smtp configured)", "to", msg.To, "subject", msg.Subject)
	return nil
}
