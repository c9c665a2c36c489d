package store

import (
	"log/slog"
	"time"

	"github.com/cryams/cryams/internal/model"
)

// ProfileStore is the durable, insertion-ordered collection of approved
// profiles. It owns one JSON file; construct it once at startup and share it.
type ProfileStore struct {
	c   *collection[model.Profile]
	now func() time.Time
	// reserve, when set, runs insert while no pending request can claim
	// uuid. OpenRequests installs it.
	reserve func(uuid string, insert func() error) error
}

// OpenProfiles loads the profile collection from path. A missing file yields
// an empty store; a corrupt one yields an empty store and a logged warning.
func OpenProfiles(path string, logger *slog.Logger) *ProfileStore {
	return &ProfileStore{
		c:   openCollection(path, profileKey, cloneProfile, logger),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func profileKey(p model.Profile) string { return p.UUID }

func cloneProfile(p model.Profile) model.Profile {
	f := p.Fields()
	p.StickerPDF = f.StickerPDF
	return p
}

// Path returns the backing file.
func (s *ProfileStore) Path() string { return s.c.path }

// Create stores p with a fresh CreatedAt and returns its uuid. It returns
// ErrConflict if the uuid is taken by a profile or, once a RequestQueue is
// attached, by a pending request.
func (s *ProfileStore) Create(p model.Profile) (string, error) {
	insert := func() error {
		var err error
		p, err = s.create(p)
		return err
	}

	var err error
	if s.reserve != nil {
		err = s.reserve(p.UUID, insert)
	} else {
		err = insert()
	}
	if err != nil {
		return "", err
	}
	return p.UUID, nil
}

func (s *ProfileStore) create(p model.Profile) (model.Profile, error) {
	p.CreatedAt = s.now()
	if err := s.c.insert(p); err != nil {
		return model.Profile{}, err
	}
	return p, nil
}

// Get returns the profile with the given uuid.
func (s *ProfileStore) Get(uuid string) (model.Profile, bool) {
	return s.c.get(uuid)
}

// Has reports whether a profile with the given uuid exists.
func (s *ProfileStore) Has(uuid string) bool {
	return s.c.has(uuid)
}

// List returns all profiles in insertion order.
func (s *ProfileStore) List() []model.Profile {
	return s.c.list()
}

// Len returns the number of stored profiles.
func (s *ProfileStore) Len() int {
	return s.c.len()
}

// Delete removes a profile and reports whether one existed.
func (s *ProfileStore) Delete(uuid string) (bool, error) {
	return s.c.remove(uuid)
}
