// Package mailer sends outbound email: prepared applications and relayed replies.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/khrees2412/autoapply/internal/logger"
	mail "gopkg.in/mail.v2"
)

// ErrInvalidMessage marks messages that can never be sent.
var ErrInvalidMessage = errors.New("invalid message")

// Message is one outbound email.
type Message struct {
	To          string
	ReplyTo     string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []string
}

// Validate checks the fields every transport needs.
func (m Message) Validate() error {
	if m.To == "" {
		return fmt.Errorf("%w: missing recipient", ErrInvalidMessage)
	}
	if m.TextBody == "" && m.HTMLBody == "" {
		return fmt.Errorf("%w: empty body", ErrInvalidMessage)
	}
	return nil
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds SMTP credentials.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends through an SMTP relay.
type SMTPSender struct {
	cfg    SMTPConfig
	dialer *mail.Dialer
	log    logger.Logger
}

// NewSMTPSender returns a sender for cfg.
func NewSMTPSender(cfg SMTPConfig, log logger.Logger) *SMTPSender {
	if log == nil {
		log = logger.NewNop()
	}
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.Timeout = 30 * time.Second
	d.StartTLSPolicy = mail.OpportunisticStartTLS
	return &SMTPSender{cfg: cfg, dialer: d, log: log}
}

// Build turns msg into a MIME message.
func (s *SMTPSender) Build(msg Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.To)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetHeader("Subject", msg.Subject)
	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBody("text/plain", msg.TextBody)
		m.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBody("text/html", msg.HTMLBody)
	default:
		m.SetBody("text/plain", msg.TextBody)
	}
	for _, path := range msg.Attachments {
		m.Attach(path, mail.Rename(filepath.Base(path)))
	}
	return m
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(s.Build(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	s.log.Info("Email sent", logger.String("to", msg.To), logger.String("subject", msg.Subject))
	return nil
}

// LogSender only logs messages. Used when no SMTP host is configured.
type LogSender struct {
	log logger.Logger
}

func NewLogSender(log logger.Logger) *LogSender {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.log.Info("Email not sent, no SMTP host configured",
		logger.String("to", msg.To),
		logger.String("reply_to", msg.ReplyTo),
		logger.String("subject", msg.Subject),
		logger.Int("attachments", len(msg.Attachments)))
	return nil
}

// RetrySender retries transient failures of the wrapped sender with
// exponential backoff. Invalid messages fail immediately.
type RetrySender struct {
	next       Sender
	maxRetries uint64
	newBackOff func() backoff.BackOff
	log        logger.Logger
}

// NewRetrySender wraps next.
func NewRetrySender(next Sender, maxRetries uint64, log logger.Logger) *RetrySender {
	if log == nil {
		log = logger.NewNop()
	}
	return &RetrySender{
		next:       next,
		maxRetries: maxRetries,
		log:        log,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxElapsedTime = 2 * time.Minute
			return b
		},
	}
}

func (s *RetrySender) Send(ctx context.Context, msg Message) error {
	attempt := 0
	op := func() error {
		attempt++
		err := s.next.Send(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrInvalidMessage) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		s.log.Warn("Email send failed, retrying", logger.Int("attempt", attempt), logger.Error(err))
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.maxRetries), ctx)
	return backoff.Retry(op, b)
}
