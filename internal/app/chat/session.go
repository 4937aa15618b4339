/*
Package chat contains the line protocol server.

This file defines the Session, which owns one client connection. It drives
the username/password handshake, joins the Registry, feeds input lines to
the Router and drains its outbox to the connection from a write pump.
*/
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"linechat/internal/app/user"
	"linechat/internal/pkg/errs"
	"linechat/internal/pkg/logx"
	"linechat/internal/pkg/randx"
)

// DefaultOutboxSize is the number of lines queued per session before the
// session is considered stalled.
const DefaultOutboxSize = 256

// errAuthFailed ends a session whose password attempts are exhausted.
var errAuthFailed = errors.New("too many wrong passwords")

// CredentialStore is the part of user.Store a Session needs.
type CredentialStore interface {
	Get(username string) (user.Credential, bool)
	Add(ctx context.Context, username, password string) (user.Credential, error)
	Verify(c user.Credential, password string) bool
}

// SessionConfig tunes every Session started by a Server.
type SessionConfig struct {
	// HandshakeTimeout bounds the whole handshake. Zero disables it.
	HandshakeTimeout time.Duration

	// OutboxSize is the capacity of each session's outbound queue.
	OutboxSize int
}

// Session is one client connection from accept to disconnect.
type Session struct {
	// ID identifies the connection in logs.
	ID string

	// conn is the client's line channel.
	conn LineConn

	// store authenticates and registers users.
	store CredentialStore

	// registry is joined after a successful handshake.
	registry *Registry

	// router delivers the user's lines.
	router *Router

	// cfg holds the handshake timeout and outbox size.
	cfg SessionConfig

	// username is set once authenticated and fixed while registered.
	username string

	// outbox queues lines for the write pump.
	outbox chan string

	// done is closed when the session is closed.
	done chan struct{}

	// closeOnce guards done and the transport.
	closeOnce sync.Once

	// structured logger with session context.
	logger zerolog.Logger
}

// NewSession prepares a session for conn. Nothing is sent until Run.
func NewSession(conn LineConn, store CredentialStore, registry *Registry, router *Router, cfg SessionConfig) *Session {
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = DefaultOutboxSize
	}

	id := randx.SessionID()

	return &Session{
		ID:       id,
		conn:     conn,
		store:    store,
		registry: registry,
		router:   router,
		cfg:      cfg,
		outbox:   make(chan string, cfg.OutboxSize),
		done:     make(chan struct{}),
		logger:   logx.Conn("Session", id, conn.RemoteAddr()),
	}
}

// Username returns the authenticated username, or "" during the handshake.
func (s *Session) Username() string {
	return s.username
}

// Deliver queues line for the client. It returns false if the session is
// closed or its outbox is full.
func (s *Session) Deliver(line string) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.outbox <- line:
		return true
	default:
		s.logger.Warn().Int("queue_len", len(s.outbox)).Msg("Session outbox full.")
		return false
	}
}

// Close ends the session and releases its transport.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

// Run executes the handshake and then the message loop until the client
// disconnects or the session is closed. It always releases the transport.
func (s *Session) Run(ctx context.Context) error {
	defer s.Close()

	s.logger.Info().Msg("Client connected.")

	cred, err := s.handshake(ctx)
	if err != nil {
		s.logger.Info().Err(err).Msg("Handshake ended without joining.")
		return err
	}

	logger := s.logger.With().Str("username", cred.Username).Logger()
	logger.Info().Msg("User authenticated.")

	go s.writePump()

	s.router.Announce(s.username, EnteredChat(s.username))
	err = s.readLoop()

	s.router.Announce(s.username, LeftChat(s.username))
	s.registry.Leave(s)

	logger.Info().Err(err).Msg("Client disconnected.")
	return nil
}

// handshake runs until the user is authenticated and registered.
func (s *Session) handshake(ctx context.Context) (user.Credential, error) {
	if s.cfg.HandshakeTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout)); err != nil {
			return user.Credential{}, err
		}
		defer s.conn.SetReadDeadline(time.Time{})
	}

	if err := s.conn.WriteLine(PromptUsername); err != nil {
		return user.Credential{}, err
	}

	for {
		name, err := s.conn.ReadLine()
		if err != nil {
			return user.Credential{}, err
		}

		name = strings.TrimSpace(name)
		if name == "" {
			if err := s.conn.WriteLine(MsgUsernameEmpty); err != nil {
				return user.Credential{}, err
			}
			continue
		}

		cred, ok, err := s.identify(ctx, name)
		if err != nil {
			return user.Credential{}, err
		}
		if !ok {
			if err := s.conn.WriteLine(MsgDifferentUsername); err != nil {
				return user.Credential{}, err
			}
			continue
		}

		joined, err := s.join(cred)
		if err != nil {
			return user.Credential{}, err
		}
		if joined {
			return cred, nil
		}
	}
}

// identify authenticates an existing user or registers a new one. It
// reports false when the client should pick another username.
func (s *Session) identify(ctx context.Context, name string) (user.Credential, bool, error) {
	if cred, ok := s.store.Get(name); ok {
		return cred, true, s.authenticate(cred)
	}

	if err := s.conn.WriteLine(PromptRegister); err != nil {
		return user.Credential{}, false, err
	}
	answer, err := s.conn.ReadLine()
	if err != nil {
		return user.Credential{}, false, err
	}
	if !strings.EqualFold(strings.TrimSpace(answer), "y") {
		return user.Credential{}, false, nil
	}

	if err := s.conn.WriteLine(PromptPassword); err != nil {
		return user.Credential{}, false, err
	}
	password, err := s.conn.ReadLine()
	if err != nil {
		return user.Credential{}, false, err
	}

	cred, err := s.store.Add(ctx, name, password)
	if errs.HasCode(err, errs.ErrCredentialExists) {
		s.logger.Info().Str("username", name).Msg("Registration lost to a concurrent one.")
		return user.Credential{}, false, s.conn.WriteLine(MsgUsernameRegistered)
	}
	if err != nil {
		return user.Credential{}, false, err
	}
	return cred, true, nil
}

// authenticate asks for the password up to MaxPasswordAttempts times.
func (s *Session) authenticate(cred user.Credential) error {
	for attempt := 1; attempt <= MaxPasswordAttempts; attempt++ {
		if err := s.conn.WriteLine(PromptPassword); err != nil {
			return err
		}
		password, err := s.conn.ReadLine()
		if err != nil {
			return err
		}
		if s.store.Verify(cred, password) {
			return nil
		}

		s.logger.Warn().Str("username", cred.Username).Int("attempt", attempt).Msg("Wrong password.")
		if err := s.conn.WriteLine(WrongPassword(attempt)); err != nil {
			return err
		}
	}

	if err := s.conn.WriteLine(MsgTooManyAttempts); err != nil {
		return err
	}
	return errAuthFailed
}

// join registers the session and sends the greeting. It reports false when
// the username is already online and the client should pick another one.
func (s *Session) join(cred user.Credential) (bool, error) {
	s.username = cred.Username

	if err := s.registry.Add(s); err != nil {
		s.username = ""
		if !errs.HasCode(err, errs.ErrUsernameOnline) {
			return false, err
		}
		s.logger.Info().Str("username", cred.Username).Msg("User already online.")
		if err := s.conn.WriteLine(MsgUserOnline); err != nil {
			return false, err
		}
		return false, s.conn.WriteLine(MsgDifferentUsername)
	}

	// Lines delivered from here on wait in the outbox until the greeting is written.
	greeting := []string{
		MsgOK,
		UsersOnline(s.registry.ListOtherUsernames(s.username)),
		MsgWelcome,
	}
	for _, line := range greeting {
		if err := s.conn.WriteLine(line); err != nil {
			s.registry.Leave(s)
			return false, err
		}
	}
	return true, nil
}

// readLoop feeds input lines to the Router until the connection fails.
func (s *Session) readLoop() error {
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			return err
		}
		s.router.Dispatch(s, line)
	}
}

// writePump writes queued lines until the session is closed.
func (s *Session) writePump() {
	for {
		select {
		case <-s.done:
			return
		case line := <-s.outbox:
			if err := s.conn.WriteLine(line); err != nil {
				s.logger.Debug().Err(err).Msg("Error writing line.")
				s.Close()
				return
			}
		}
	}
}
