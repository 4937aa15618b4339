/*
Package user contains the credential records of chat users and the store that owns them.

This file defines the Store, the in-memory owner of all credentials. It is
constructed explicitly, loaded once at startup and mutated only by registrations,
each of which is persisted through the Backend before Add returns.
*/
package user

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"linechat/internal/pkg/errs"
	"linechat/internal/pkg/logx"
)

// Store holds every known credential in memory.
type Store struct {
	// backend persists registrations.
	backend Backend

	// hashPasswords makes Add store bcrypt hashes.
	hashPasswords bool

	// users is the ordered credential list.
	users []Credential

	// mu serializes registrations with each other and with lookups.
	mu sync.RWMutex

	// structured logger with store context.
	logger zerolog.Logger
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithPasswordHashing makes the store keep bcrypt hashes instead of plaintext passwords.
func WithPasswordHashing(enabled bool) StoreOption {
	return func(s *Store) {
		s.hashPasswords = enabled
	}
}

// NewStore constructs an empty Store persisting through backend.
func NewStore(backend Backend, opts ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		users:   []Credential{},
		logger:  logx.Component("credential_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory list with the backend content.
// Malformed content yields errs.ErrStoreCorrupt, other failures errs.ErrStoreUnavailable.
func (s *Store) Load(ctx context.Context) error {
	creds, err := s.backend.Load(ctx)
	if err != nil {
		var corrupt errCorrupt
		if errors.As(err, &corrupt) {
			return errs.Wrap(errs.ErrStoreCorrupt, err)
		}
		return errs.Wrap(errs.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	s.users = creds
	s.mu.Unlock()

	s.logger.Info().Int("users", len(creds)).Msg("Credentials loaded.")
	return nil
}

// Get looks a credential up by username, ignoring case and surrounding whitespace.
func (s *Store) Get(username string) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found, ok := s.find(username)
	s.logger.Debug().
		Str("username", strings.TrimSpace(username)).
		Bool("found", ok).
		Msg("Credential lookup.")
	return found, ok
}

// Len returns the number of stored credentials.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Add registers a new user and persists the store before returning.
// An existing username (case-insensitive) yields errs.ErrCredentialExists.
// When persistence fails the registration is rolled back.
func (s *Store) Add(ctx context.Context, username, password string) (Credential, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Credential{}, errs.NewError(errs.ErrUsernameInvalid)
	}

	stored := password
	if s.hashPasswords {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return Credential{}, errs.Wrap(errs.ErrUnknown, err)
		}
		stored = string(hashed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.find(username); ok {
		return Credential{}, errs.NewError(errs.ErrCredentialExists, existing.Username)
	}

	added := Credential{Username: username, Password: stored}
	all := make([]Credential, len(s.users), len(s.users)+1)
	copy(all, s.users)
	all = append(all, added)

	if err := s.backend.Save(ctx, all, added); err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("Failed to persist new credential.")
		if errs.HasCode(err, errs.ErrCredentialExists) {
			return Credential{}, err
		}
		return Credential{}, errs.Wrap(errs.ErrStoreUnavailable, err)
	}

	s.users = all
	s.logger.Info().Str("username", username).Int("users", len(all)).Msg("User registered.")
	return added, nil
}

// Verify reports whether password matches the stored credential.
// Records holding a bcrypt hash are compared with bcrypt, others exactly,
// so plaintext and hashed records can share a store whatever its mode.
func (s *Store) Verify(c Credential, password string) bool {
	if _, err := bcrypt.Cost([]byte(c.Password)); err == nil {
		return bcrypt.CompareHashAndPassword([]byte(c.Password), []byte(password)) == nil
	}
	return c.Password == password
}

// find must be called with mu held.
func (s *Store) find(username string) (Credential, bool) {
	for _, c := range s.users {
		if c.SameUsername(username) {
			return c, true
		}
	}
	return Credential{}, false
}
