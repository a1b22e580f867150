package usecase

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"meeting-summarizer/internal/domain"
)

const sharedSummariesSubject = "Shared Summaries"

// Mailer delivers one outbound message.
type Mailer interface {
	Send(ctx context.Context, msg domain.OutboundMail) error
}

// NotifyService mails caller-selected summary text to a single address. It
// works on text only and never reads or writes stored summaries.
type NotifyService struct {
	mailer   Mailer
	renderer *digestRenderer
}

type NotifyInput struct {
	Address string
	Bodies  []string
}

func NewNotifyService(m Mailer) (*NotifyService, error) {
	if m == nil {
		return nil, errors.New("usecase: mailer must not be nil")
	}
	return &NotifyService{mailer: m, renderer: newDigestRenderer()}, nil
}

func (s *NotifyService) Send(ctx context.Context, in NotifyInput) error {
	address := strings.TrimSpace(in.Address)
	if address == "" {
		return newError(ErrorValidation, "empty_address", nil)
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return newError(ErrorValidation, "invalid_address", err)
	}

	bodies := make([]string, 0, len(in.Bodies))
	for _, b := range in.Bodies {
		if b = strings.TrimSpace(b); b != "" {
			bodies = append(bodies, b)
		}
	}
	if len(bodies) == 0 {
		return newError(ErrorValidation, "empty_bodies", nil)
	}

	htmlBody, err := s.renderer.HTML(bodies)
	if err != nil {
		return newError(ErrorInternal, "render_error", err)
	}

	msg := domain.OutboundMail{
		To:       parsed.Address,
		Subject:  sharedSummariesSubject,
		HTMLBody: htmlBody,
		TextBody: s.renderer.Text(bodies),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return newError(ErrorDelivery, "mail_transport_error", err)
	}
	return nil
}
