package store

import (
	"log/slog"
	"time"

	"github.com/cryams/cryams/internal/model"
)

// RequestQueue holds publicly submitted profile requests until an
// administrator approves or rejects them. Both outcomes remove the request;
// approval additionally creates the profile.
//
// Every operation that touches both collections holds the request file lock
// first and the profile file lock second, so a uuid never lives in both.
type RequestQueue struct {
	c        *collection[model.PendingRequest]
	profiles *ProfileStore
	logger   *slog.Logger
	now      func() time.Time
}

// OpenRequests loads the request collection from path.
// It attaches itself to profiles so direct profile creation also refuses
// uuids held by pending requests.
func OpenRequests(path string, profiles *ProfileStore, logger *slog.Logger) *RequestQueue {
	q := &RequestQueue{
		c:        openCollection(path, requestKey, cloneRequest, logger),
		profiles: profiles,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	profiles.reserve = q.reserve
	return q
}

func (q *RequestQueue) reserve(uuid string, insert func() error) error {
	return q.c.withLock(func() error {
		if q.c.indexOf(uuid) >= 0 {
			return ErrConflict
		}
		return insert()
	})
}

func requestKey(r model.PendingRequest) string { return r.UUID }

func cloneRequest(r model.PendingRequest) model.PendingRequest {
	f := r.Fields()
	r.StickerPDF = f.StickerPDF
	return r
}

// Path returns the backing file.
func (q *RequestQueue) Path() string { return q.c.path }

// Create enqueues r as pending. It returns ErrConflict if the uuid is used
// by a pending request or an existing profile.
func (q *RequestQueue) Create(r model.PendingRequest) (string, error) {
	err := q.c.withLock(func() error {
		if q.profiles.Has(r.UUID) {
			return ErrConflict
		}
		r.Status = model.StatusPending
		r.CreatedAt = q.now()
		return q.c.insertLocked(r)
	})
	if err != nil {
		return "", err
	}
	return r.UUID, nil
}

// Get returns the pending request with the given uuid.
func (q *RequestQueue) Get(uuid string) (model.PendingRequest, bool) {
	return q.c.get(uuid)
}

// List returns all pending requests in submission order.
func (q *RequestQueue) List() []model.PendingRequest {
	return q.c.list()
}

// Len returns the number of pending requests.
func (q *RequestQueue) Len() int {
	return q.c.len()
}

// Approve turns the pending request into a profile and removes it from the
// queue. It returns nil, nil when no such request exists. If a profile with
// the same uuid already exists, nothing changes and ErrConflict is returned.
func (q *RequestQueue) Approve(uuid string) (*model.Profile, error) {
	var approved *model.Profile
	err := q.c.withLock(func() error {
		i := q.c.indexOf(uuid)
		if i < 0 {
			return nil
		}
		if q.profiles.Has(uuid) {
			return ErrConflict
		}

		p, err := model.NewProfile(q.c.items[i].Fields())
		if err != nil {
			return err
		}
		p, err = q.profiles.create(p)
		if err != nil {
			return err
		}

		if _, err := q.c.removeLocked(uuid); err != nil {
			if _, rbErr := q.profiles.Delete(uuid); rbErr != nil {
				q.logger.Error("approve rollback failed, uuid present in profiles and requests",
					"uuid", uuid, "error", rbErr)
			}
			return err
		}
		approved = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// Reject discards the pending request and reports whether one existed.
func (q *RequestQueue) Reject(uuid string) (bool, error) {
	return q.c.remove(uuid)
}
