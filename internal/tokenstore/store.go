// Package tokenstore persists OAuth credentials for one or more Gmail
// accounts in a single JSON file.
//
// A token file is either in legacy form (one record at the document root) or
// in multi-account form (account key to record). The form is decided once,
// when the file is decoded. Saves re-read the file under an advisory lock and
// replace it atomically, so records of other accounts are never dropped.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
)

const (
	defaultLockTimeout = 10 * time.Second
	lockRetryDelay     = 50 * time.Millisecond
)

// Store reads and writes one token file.
type Store struct {
	path        string
	lockTimeout time.Duration
}

// New returns a store for the token file at path.
func New(path string) *Store {
	return &Store{path: path, lockTimeout: defaultLockTimeout}
}

// Path returns the token file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads and classifies the token file. It returns ErrNotFound when the
// file does not exist.
func (s *Store) Load() (*File, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read token file %s: %w", s.path, err)
	}
	f, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", s.path, err)
	}
	return f, nil
}

// Resolve looks up the record for key. An empty key means "not specified".
//
// The boolean result is false when nothing is stored for an unspecified key
// in a multi-account file. An explicitly requested key that the file does not
// hold is an UnknownAccountError, never an implicit "create new".
func (s *Store) Resolve(key string) (Record, bool, error) {
	f, err := s.Load()
	if err != nil {
		return Record{}, false, err
	}
	return resolve(f, key)
}

func resolve(f *File, key string) (Record, bool, error) {
	if f.Form() == FormLegacy {
		if key == "" || key == DefaultAccount {
			rec, _ := f.LegacyRecord()
			return rec, true, nil
		}
		return Record{}, false, &UnknownAccountError{Key: key, Available: []string{DefaultAccount}}
	}

	lookup := key
	if lookup == "" {
		lookup = DefaultAccount
	}
	if rec, ok := f.Get(lookup); ok {
		return rec, true, nil
	}
	if key == "" {
		return Record{}, false, nil
	}

	available := f.Keys()
	sort.Strings(available)
	return Record{}, false, &UnknownAccountError{Key: key, Available: available}
}

// Save stores rec under key. An empty key means DefaultAccount.
//
// The file is written in multi-account form when forceMulti is set, when it
// already is multi-account, or when it is legacy and key is not the default
// account (the legacy record moves under DefaultAccount first). Otherwise the
// record is written in legacy form.
func (s *Store) Save(ctx context.Context, key string, rec Record, forceMulti bool) error {
	if key == "" {
		key = DefaultAccount
	}
	if key == legacyMarker {
		return fmt.Errorf("account name %q is reserved", key)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := s.Load()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	next := merge(current, key, rec, forceMulti)
	data, err := next.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode token file: %w", err)
	}
	return writeFileAtomic(s.path, data, 0o600)
}

// merge computes the file content after storing rec under key on top of
// current, which is nil when no file exists.
func merge(current *File, key string, rec Record, forceMulti bool) *File {
	multi := forceMulti
	if current != nil {
		if current.Form() == FormMulti {
			multi = true
		} else if key != DefaultAccount {
			multi = true
		}
	}

	if !multi {
		return Legacy(rec)
	}

	var next *File
	if current != nil {
		next = current.Upgrade()
	} else {
		next = Multi(nil)
	}
	next.Accounts().Set(key, rec)
	return next
}

// ListAccountKeys returns the stored account keys in file order. A missing
// file yields an empty list and a legacy file yields only DefaultAccount.
func (s *Store) ListAccountKeys() ([]string, error) {
	f, err := s.Load()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []string{}, nil
		}
		return nil, err
	}
	return f.Keys(), nil
}

func (s *Store) lock(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	fl := flock.New(s.path + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock token file: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock token file %s: timed out", s.path)
	}
	return func() { _ = fl.Unlock() }, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary token file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to set token file permissions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close token file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}
