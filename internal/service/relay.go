package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cryams/cryams/internal/mail"
	"github.com/cryams/cryams/internal/store"
	"github.com/cryams/cryams/internal/validate"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrDelivery        = errors.New("message could not be delivered")
)

// Relay forwards anonymous messages to profile owners by e-mail. Messages
// are never stored or logged.
type Relay struct {
	profiles  *store.ProfileStore
	sender    mail.Sender
	validator *validate.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewRelay returns a Relay delivering through sender.
func NewRelay(profiles *store.ProfileStore, sender mail.Sender, v *validate.Validator, logger *slog.Logger) *Relay {
	return &Relay{
		profiles:  profiles,
		sender:    sender,
		validator: v,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Send validates in and mails it to the owner of profile uuid.
func (r *Relay) Send(ctx context.Context, uuid string, in validate.MessageInput) error {
	p, ok := r.profiles.Get(uuid)
	if !ok {
		return ErrProfileNotFound
	}
	in, err := r.validator.Message(in)
	if err != nil {
		return err
	}

	msg, err := mail.ComposeAnonymous(mail.Anonymous{
		RecipientName:  p.Name,
		RecipientEmail: p.Email,
		Content:        in.Content,
		SenderName:     in.SenderName,
		SentAt:         r.now(),
	})
	if err != nil {
		return fmt.Errorf("compose message: %w", err)
	}
	if err := r.sender.Send(ctx, msg); err != nil {
		r.logger.ErrorContext(ctx, "message delivery failed", "uuid", uuid, "error", err)
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	r.logger.InfoContext(ctx, "message relayed", "uuid", uuid)
	return nil
}
