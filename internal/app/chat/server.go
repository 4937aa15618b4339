/*
Package chat contains the line protocol server.

This file defines the Server, which accepts TCP connections, runs one
Session per connection and owns shutdown. It tracks every open connection,
joined or still in the handshake, so that it can disconnect all of them.
*/
package chat

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"linechat/internal/pkg/errs"
	"linechat/internal/pkg/limiter"
	"linechat/internal/pkg/logx"
)

// acceptBackoff is the pause after a temporary accept error.
const acceptBackoff = 50 * time.Millisecond

// Server accepts chat connections and runs their sessions.
type Server struct {
	// store authenticates and registers users.
	store CredentialStore

	// registry holds joined users.
	registry *Registry

	// router delivers user lines.
	router *Router

	// limiter throttles new connections per IP. Nil disables throttling.
	limiter *limiter.IPRateLimiter

	// sessionConfig is passed to every Session.
	sessionConfig SessionConfig

	// conns holds every open connection.
	conns map[LineConn]struct{}

	// closed is set by DisconnectAll; later connections are refused.
	closed bool

	// mu protects conns and closed.
	mu sync.Mutex

	// wg counts running sessions, TCP and WebSocket alike.
	wg sync.WaitGroup

	// structured logger with Server context.
	logger zerolog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLimiter throttles connection attempts per remote IP.
func WithLimiter(l *limiter.IPRateLimiter) ServerOption {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithSessionConfig sets the handshake timeout and outbox size of sessions.
func WithSessionConfig(cfg SessionConfig) ServerOption {
	return func(s *Server) {
		s.sessionConfig = cfg
	}
}

// NewServer constructs a Server around its collaborators.
func NewServer(store CredentialStore, registry *Registry, router *Router, opts ...ServerOption) *Server {
	s := &Server{
		store:    store,
		registry: registry,
		router:   router,
		conns:    make(map[LineConn]struct{}),
		logger:   logx.Component("Server"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Registry returns the registry of joined users.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Serve accepts connections on ln until ctx is cancelled or accepting fails.
// Cancellation closes ln, disconnects everyone and returns nil. Any other
// accept error disconnects everyone and is returned as ErrListenerFailed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Chat listener started.")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info().Msg("Chat listener closed.")
				s.DisconnectAll()
				return nil
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.logger.Warn().Err(err).Msg("Temporary accept error.")
				time.Sleep(acceptBackoff)
				continue
			}

			s.logger.Error().Err(err).Msg("Accept failed, shutting down chat listener.")
			ln.Close()
			s.DisconnectAll()
			return errs.Wrap(errs.ErrListenerFailed, err)
		}

		if s.limiter != nil && !s.limiter.Allow(conn.RemoteAddr().String()) {
			s.logger.Warn().Str("remote_ip", logx.AnonymizeIP(conn.RemoteAddr().String())).Msg("Connection rejected: rate limit exceeded.")
			conn.Close()
			continue
		}

		go s.ServeConn(ctx, NewTCPConn(conn))
	}
}

// ServeConn runs a Session on conn and blocks until it ends.
// It is used for TCP connections and for upgraded WebSocket connections.
func (s *Server) ServeConn(ctx context.Context, conn LineConn) {
	if !s.track(conn) {
		conn.Close()
		return
	}
	defer s.untrack(conn)

	session := NewSession(conn, s.store, s.registry, s.router, s.sessionConfig)
	session.Run(ctx)
}

// DisconnectAll closes every open connection, including those still in the
// handshake, and refuses connections handed to ServeConn afterwards.
func (s *Server) DisconnectAll() {
	s.mu.Lock()
	s.closed = true
	conns := make([]LineConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.registry.DisconnectAll()
	for _, c := range conns {
		c.Close()
	}

	s.logger.Info().Int("connections", len(conns)).Msg("All connections closed.")
}

// Wait blocks until every session handed to ServeConn has ended.
func (s *Server) Wait() {
	s.wg.Wait()
}

// ConnCount returns the number of open connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) track(conn LineConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn LineConn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()

	s.wg.Done()
}
