/*
Package user contains the credential records of chat users and the store that owns them.

This file defines the Backend contract implemented by every persistence layer
(JSON file, PostgreSQL, S3) and the JSON file backend used by default.
*/
package user

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Backend persists credentials on behalf of a Store.
type Backend interface {
	// Load returns every persisted credential. A store that does not exist yet
	// yields an empty list; unreadable or malformed content is an error.
	Load(ctx context.Context) ([]Credential, error)

	// Save persists a registration. all is the complete list including added;
	// rewrite-style backends store all, row-style backends insert added.
	Save(ctx context.Context, all []Credential, added Credential) error
}

// FileBackend keeps credentials in a single JSON file that is rewritten on every save.
type FileBackend struct {
	// Path is the location of the JSON document.
	Path string
}

// NewFileBackend returns a backend for the JSON file at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: path}
}

// Load reads the JSON file; a missing file is an empty store.
func (b *FileBackend) Load(_ context.Context) ([]Credential, error) {
	f, err := os.Open(b.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Credential{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	creds, err := DecodeCredentials(f)
	if err != nil {
		return nil, Corrupt(fmt.Errorf("%s: %w", b.Path, err))
	}
	return creds, nil
}

// Save rewrites the whole file. The new content is written to a temporary file
// in the same directory and renamed over the old one.
func (b *FileBackend) Save(_ context.Context, all []Credential, _ Credential) error {
	data, err := EncodeCredentials(all)
	if err != nil {
		return err
	}

	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary credential file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close credentials: %w", err)
	}

	if err := os.Rename(tmpName, b.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}

// errCorrupt marks decode failures so the Store can classify them.
type errCorrupt struct{ err error }

func (e errCorrupt) Error() string { return e.err.Error() }
func (e errCorrupt) Unwrap() error { return e.err }

// Corrupt wraps a decode failure from a Backend so that Store.Load reports it
// as corrupt content rather than as an unavailable backend.
func Corrupt(err error) error {
	return errCorrupt{err}
}
