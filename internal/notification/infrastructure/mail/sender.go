package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/textproto"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/internal/notification/domain"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/apperr"
	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/pkg/config"
)

// Dialer is the part of gomail.Dialer the sender uses.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// DefaultGrace is how long Send keeps waiting for an SMTP exchange that is
// already under way after its context ends.
const DefaultGrace = 30 * time.Second

type Sender struct {
	log    *slog.Logger
	dialer Dialer
	from   string
	grace  time.Duration
}

type Option func(*Sender)

func WithGrace(d time.Duration) Option {
	return func(s *Sender) {
		if d > 0 {
			s.grace = d
		}
	}
}

func NewSender(log *slog.Logger, cfg config.SMTPConfig, opts ...Option) *Sender {
	return NewSenderWithDialer(log, gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, opts...)
}

func NewSenderWithDialer(log *slog.Logger, d Dialer, from string, opts ...Option) *Sender {
	s := &Sender{log: log, dialer: d, from: from, grace: DefaultGrace}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sender) Send(ctx context.Context, to, subject, htmlBody string, attachments []domain.Attachment) error {
	m := s.build(to, subject, htmlBody, attachments)

	// gomail has no context support, so the exchange cannot be stopped once
	// started. When ctx ends it gets a grace period; past that the mail may or
	// may not have gone out.
	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		timer := time.NewTimer(s.grace)
		defer timer.Stop()
		select {
		case err = <-done:
			s.log.Warn("mail finished after context ended", "to", to, "ctx_err", ctx.Err())
		case <-timer.C:
			return fmt.Errorf("send to %s abandoned after %s (%v): %w", to, s.grace, ctx.Err(), domain.ErrDeliveryUnknown)
		}
	}
	if err != nil {
		return classify(err)
	}
	s.log.Debug("mail sent", "to", to, "subject", subject, "attachments", len(attachments))
	return nil
}

func (s *Sender) build(to, subject, htmlBody string, attachments []domain.Attachment) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)
	for _, a := range attachments {
		data := a.Data
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}))
		}
		m.Attach(a.Name, settings...)
	}
	return m
}

// classify marks permanent SMTP rejections (5xx) as invalid so they are
// dead-lettered instead of retried.
func classify(err error) error {
	var tp *textproto.Error
	if errors.As(err, &tp) && tp.Code >= 500 {
		return fmt.Errorf("smtp rejected message: %v: %w", err, apperr.ErrInvalid)
	}
	return apperr.Transient(err)
}
