package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
)

// writeJSON serializes v and atomically replaces path with it. Readers of
// path see either the previous or the new content, never a partial write.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &PersistError{Op: "encode", Path: path, Err: err}
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &PersistError{Op: "write", Path: path, Err: err}
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return &PersistError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// readJSON decodes path into v. It reports found=false without error when
// the file does not exist.
func readJSON(path string, v interface{}) (found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &PersistError{Op: "read", Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, &PersistError{Op: "decode", Path: path, Err: err}
	}
	return true, nil
}

// Stamp identifies one version of a backing file. Every write replaces the
// file by rename, so a changed stamp means another writer got there first.
type Stamp struct {
	fi os.FileInfo
}

func stampOf(path string) Stamp {
	fi, err := os.Stat(path)
	if err != nil {
		return Stamp{}
	}
	return Stamp{fi: fi}
}

// Equal reports whether both stamps describe the same file version. Two
// stamps of a missing file are equal.
func (s Stamp) Equal(o Stamp) bool {
	if s.fi == nil || o.fi == nil {
		return s.fi == nil && o.fi == nil
	}
	return os.SameFile(s.fi, o.fi) &&
		s.fi.ModTime().Equal(o.fi.ModTime()) &&
		s.fi.Size() == o.fi.Size()
}

// lockPath returns the advisory lock guarding path. Every process that
// writes path holds it for the whole read-modify-write cycle.
func lockPath(path string) *flock.Flock {
	return flock.New(path + ".lock")
}

// acquire takes the advisory lock, creating the data directory if needed.
func acquire(fl *flock.Flock) (release func(), err error) {
	if err := os.MkdirAll(filepath.Dir(fl.Path()), 0755); err != nil {
		return nil, &PersistError{Op: "write", Path: fl.Path(), Err: err}
	}
	if err := fl.Lock(); err != nil {
		return nil, &PersistError{Op: "write", Path: fl.Path(), Err: err}
	}
	return func() { _ = fl.Unlock() }, nil
}

// collection is an ordered, keyed set of records persisted as one JSON
// array. Reads pick up changes other processes made to the file. Mutations
// hold the file lock, reload, and only update memory once the write
// succeeded.
type collection[T any] struct {
	mu     sync.Mutex
	path   string
	lock   *flock.Flock
	seen   Stamp
	items  []T
	key    func(T) string
	clone  func(T) T
	logger *slog.Logger
}

func openCollection[T any](path string, key func(T) string, clone func(T) T, logger *slog.Logger) *collection[T] {
	c := &collection[T]{
		path:   path,
		lock:   lockPath(path),
		items:  []T{},
		key:    key,
		clone:  clone,
		logger: logger,
	}
	c.reload()
	return c
}

// reload replaces memory with the file content. An unreadable or corrupt
// file keeps the current items; the next successful mutation overwrites it.
func (c *collection[T]) reload() {
	c.seen = stampOf(c.path)

	var items []T
	found, err := readJSON(c.path, &items)
	switch {
	case err != nil:
		c.logger.Warn("could not load data file, keeping current state", "path", c.path, "error", err)
	case !found || items == nil:
		c.items = []T{}
	default:
		c.items = items
	}
}

// refresh reloads when another writer replaced the file. Callers hold mu.
func (c *collection[T]) refresh() {
	if !stampOf(c.path).Equal(c.seen) {
		c.reload()
	}
}

// withLock runs fn holding both the in-process and the file lock, on
// freshly loaded items.
func (c *collection[T]) withLock(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	release, err := acquire(c.lock)
	if err != nil {
		return err
	}
	defer release()

	c.refresh()
	return fn()
}

// commit writes next and makes it the current state. Callers hold the locks.
func (c *collection[T]) commit(next []T) error {
	if err := writeJSON(c.path, next); err != nil {
		return err
	}
	c.items = next
	c.seen = stampOf(c.path)
	return nil
}

func (c *collection[T]) indexOf(k string) int {
	for i, item := range c.items {
		if c.key(item) == k {
			return i
		}
	}
	return -1
}

func (c *collection[T]) get(k string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh()
	if i := c.indexOf(k); i >= 0 {
		return c.clone(c.items[i]), true
	}
	var zero T
	return zero, false
}

func (c *collection[T]) has(k string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh()
	return c.indexOf(k) >= 0
}

func (c *collection[T]) list() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh()
	out := make([]T, len(c.items))
	for i, item := range c.items {
		out[i] = c.clone(item)
	}
	return out
}

func (c *collection[T]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh()
	return len(c.items)
}

func (c *collection[T]) insert(item T) error {
	return c.withLock(func() error {
		return c.insertLocked(item)
	})
}

func (c *collection[T]) insertLocked(item T) error {
	if c.indexOf(c.key(item)) >= 0 {
		return ErrConflict
	}
	next := make([]T, len(c.items), len(c.items)+1)
	copy(next, c.items)
	next = append(next, c.clone(item))
	return c.commit(next)
}

func (c *collection[T]) remove(k string) (bool, error) {
	var removed bool
	err := c.withLock(func() error {
		var err error
		removed, err = c.removeLocked(k)
		return err
	})
	return removed, err
}

func (c *collection[T]) removeLocked(k string) (bool, error) {
	i := c.indexOf(k)
	if i < 0 {
		return false, nil
	}
	next := make([]T, 0, len(c.items)-1)
	next = append(next, c.items[:i]...)
	next = append(next, c.items[i+1:]...)
	if err := c.commit(next); err != nil {
		return false, err
	}
	return true, nil
}
