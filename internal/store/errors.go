package store

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned when a uuid is already used by a profile or a
	// pending request.
	ErrConflict = errors.New("uuid already exists")

	// ErrPersistence matches every *PersistError.
	ErrPersistence = errors.New("persistence failure")
)

// PersistError reports a failed read or write of a backing file. Save
// failures are always returned to the caller; the in-memory state is left
// as it was before the mutation.
type PersistError struct {
	Op   string // "encode", "write", "read", "decode"
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}
