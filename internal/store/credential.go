package store

import (
	"github.com/gofrs/flock"

	"github.com/cryams/cryams/internal/model"
)

// CredentialFile persists the single administrator credential as one JSON
// object. Unlike the collections it does not degrade on corruption: a file
// that exists but cannot be decoded is reported, so a damaged credential
// never silently reopens first-run setup.
type CredentialFile struct {
	path string
	lock *flock.Flock
}

// NewCredentialFile returns a CredentialFile backed by path.
func NewCredentialFile(path string) *CredentialFile {
	return &CredentialFile{path: path, lock: lockPath(path)}
}

// Path returns the backing file.
func (f *CredentialFile) Path() string { return f.path }

// Lock takes the advisory file lock shared by every process using path.
// Hold it across Load and Save to make a read-modify-write atomic.
func (f *CredentialFile) Lock() (unlock func(), err error) {
	return acquire(f.lock)
}

// Stamp identifies the file version currently on disk.
func (f *CredentialFile) Stamp() Stamp {
	return stampOf(f.path)
}

// Load returns the stored credential, or nil if none has been created yet.
func (f *CredentialFile) Load() (*model.AdminCredential, error) {
	var c model.AdminCredential
	found, err := readJSON(f.path, &c)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &c, nil
}

// Save replaces the stored credential.
func (f *CredentialFile) Save(c model.AdminCredential) error {
	return writeJSON(f.path, c)
}
