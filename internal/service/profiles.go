package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cryams/cryams/internal/mail"
	"github.com/cryams/cryams/internal/model"
	"github.com/cryams/cryams/internal/store"
	"github.com/cryams/cryams/internal/validate"
)

// Profiles turns validated form input into pending requests and profiles.
type Profiles struct {
	profiles  *store.ProfileStore
	requests  *store.RequestQueue
	validator *validate.Validator
	sender    mail.Sender
	logger    *slog.Logger

	// NotifyAddress receives a notice for every new request when set.
	NotifyAddress string
	// AdminURL is linked from request notices.
	AdminURL string
}

// NewProfiles returns a Profiles service over the given stores.
func NewProfiles(profiles *store.ProfileStore, requests *store.RequestQueue, v *validate.Validator, sender mail.Sender, logger *slog.Logger) *Profiles {
	return &Profiles{
		profiles:  profiles,
		requests:  requests,
		validator: v,
		sender:    sender,
		logger:    logger,
	}
}

// SubmitRequest validates in and queues it for moderation under a fresh uuid.
func (s *Profiles) SubmitRequest(ctx context.Context, in validate.ProfileInput) (model.PendingRequest, error) {
	f, err := s.validator.Profile(in)
	if err != nil {
		return model.PendingRequest{}, err
	}
	f.UUID = uuid.NewString()

	r, err := model.NewPendingRequest(f)
	if err != nil {
		return model.PendingRequest{}, err
	}
	if _, err := s.requests.Create(r); err != nil {
		return model.PendingRequest{}, fmt.Errorf("queue request: %w", err)
	}
	created, _ := s.requests.Get(r.UUID)
	s.logger.InfoContext(ctx, "profile request queued", "uuid", r.UUID)

	s.notify(ctx, created)
	return created, nil
}

// CreateProfile validates in and stores it as an approved profile.
func (s *Profiles) CreateProfile(in validate.ProfileInput) (model.Profile, error) {
	f, err := s.validator.Profile(in)
	if err != nil {
		return model.Profile{}, err
	}
	f.UUID = uuid.NewString()

	p, err := model.NewProfile(f)
	if err != nil {
		return model.Profile{}, err
	}
	if _, err := s.profiles.Create(p); err != nil {
		return model.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	created, _ := s.profiles.Get(p.UUID)
	return created, nil
}

// notify is best effort; a failed notice never fails the submission.
func (s *Profiles) notify(ctx context.Context, r model.PendingRequest) {
	if s.NotifyAddress == "" || s.sender == nil {
		return
	}
	notice := mail.RequestNotice{
		To:          s.NotifyAddress,
		Name:        r.Name,
		Email:       r.Email,
		Description: r.Description,
		AdminURL:    s.AdminURL,
		SentAt:      time.Now().UTC(),
	}
	if r.StickerPDF != nil {
		notice.Sticker = r.StickerPDF.Label
	}
	msg, err := mail.ComposeRequestNotice(notice)
	if err == nil {
		err = s.sender.Send(ctx, msg)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "request notification failed", "uuid", r.UUID, "error", err)
	}
}
