package model

import "time"

// RequestStatus is the moderation state of a profile request. Only
// StatusPending is ever persisted: approval and rejection remove the record.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// PendingRequest is a publicly submitted request for a profile awaiting an
// administrator's decision.
type PendingRequest struct {
	UUID        string        `json:"uuid"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	Description string        `json:"description"`
	StickerPDF  *StickerSpec  `json:"stickerPDF,omitempty"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// NewPendingRequest builds a pending request from validated fields.
func NewPendingRequest(f ProfileFields) (PendingRequest, error) {
	if err := f.check(); err != nil {
		return PendingRequest{}, err
	}
	return PendingRequest{
		UUID:        f.UUID,
		Name:        f.Name,
		Email:       f.Email,
		Description: f.Description,
		StickerPDF:  f.StickerPDF.clone(),
		Status:      StatusPending,
	}, nil
}

// Fields returns the attribute set carried over to a Profile on approval.
func (r PendingRequest) Fields() ProfileFields {
	return ProfileFields{
		UUID:        r.UUID,
		Name:        r.Name,
		Email:       r.Email,
		Description: r.Description,
		StickerPDF:  r.StickerPDF.clone(),
	}
}
