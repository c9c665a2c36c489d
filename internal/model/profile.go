package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRecord is returned by the record constructors when required
// fields are missing or inconsistent.
var ErrInvalidRecord = errors.New("invalid record")

// ProfileFields is the validated attribute set shared by profiles and
// pending requests. Callers populate it from sanitized input.
type ProfileFields struct {
	UUID        string
	Name        string
	Email       string
	Description string
	StickerPDF  *StickerSpec
}

func (f ProfileFields) check() error {
	var missing []string
	if strings.TrimSpace(f.UUID) == "" {
		missing = append(missing, "uuid")
	}
	if strings.TrimSpace(f.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(f.Email) == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRecord, strings.Join(missing, ", "))
	}
	if f.StickerPDF != nil {
		if err := f.StickerPDF.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
	}
	return nil
}

// Profile is an approved, publicly reachable messaging endpoint. Visitors
// reach it at /{uuid}; messages are relayed to Email and never stored.
type Profile struct {
	UUID        string       `json:"uuid"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"createdAt"`
	StickerPDF  *StickerSpec `json:"stickerPDF,omitempty"`
}

// NewProfile builds a Profile from validated fields. CreatedAt is left zero;
// the profile store stamps it on insert.
func NewProfile(f ProfileFields) (Profile, error) {
	if err := f.check(); err != nil {
		return Profile{}, err
	}
	return Profile{
		UUID:        f.UUID,
		Name:        f.Name,
		Email:       f.Email,
		Description: f.Description,
		StickerPDF:  f.StickerPDF.clone(),
	}, nil
}

// Fields returns the attribute set of p.
func (p Profile) Fields() ProfileFields {
	return ProfileFields{
		UUID:        p.UUID,
		Name:        p.Name,
		Email:       p.Email,
		Description: p.Description,
		StickerPDF:  p.StickerPDF.clone(),
	}
}

// Sticker returns the profile's sticker layout, defaulting to a single sticker.
func (p Profile) Sticker() StickerSpec {
	if p.StickerPDF != nil {
		return *p.StickerPDF
	}
	return StickerSpec{Label: "1x1", Rows: 1, Cols: 1, Count: 1}
}

func (s *StickerSpec) clone() *StickerSpec {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
