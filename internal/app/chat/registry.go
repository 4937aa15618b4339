/*
Package chat contains the line protocol server.

This file defines the Registry, the map of joined users. A username appears
at most once, and only between a successful handshake and the end of the
session. All reads and writes of the map share one lock; delivery happens on
a snapshot taken under the lock, after it is released.
*/
package chat

import (
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"linechat/internal/pkg/errs"
	"linechat/internal/pkg/logx"
)

// Member is a joined participant as seen by the Registry.
type Member interface {
	// Username is the key the member is registered under. It never changes
	// while the member is registered.
	Username() string

	// Deliver queues line for the member without blocking. It returns false
	// if the line could not be queued.
	Deliver(line string) bool

	// Close disconnects the member. It is safe to call more than once.
	Close() error
}

// Registry tracks joined members by username.
type Registry struct {
	// members maps usernames to their joined member.
	members map[string]Member

	// mu protects concurrent access to the members map.
	mu sync.RWMutex

	// structured logger with Registry context.
	logger zerolog.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		members: make(map[string]Member),
		logger:  logx.Component("Registry"),
	}
}

// Add registers m under its username. It fails if the username is blank or
// already taken; the first caller for a username wins.
func (r *Registry) Add(m Member) error {
	username := m.Username()
	if strings.TrimSpace(username) == "" {
		return errs.NewError(errs.ErrUsernameInvalid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.members[username]; taken {
		return errs.NewError(errs.ErrUsernameOnline, username)
	}
	r.members[username] = m

	r.logger.Info().Str("username", username).Int("online", len(r.members)).Msg("User joined.")
	return nil
}

// Remove unregisters username and closes its transport. Unknown usernames are ignored.
func (r *Registry) Remove(username string) {
	r.mu.Lock()
	m, ok := r.members[username]
	if ok {
		delete(r.members, username)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	r.logger.Info().Str("username", username).Msg("User removed.")
	m.Close()
}

// Leave unregisters m if it is still the member registered under its username.
// It reports whether an entry was removed. The transport is left to the caller.
func (r *Registry) Leave(m Member) bool {
	username := m.Username()

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.members[username]; !ok || current != m {
		return false
	}
	delete(r.members, username)

	r.logger.Info().Str("username", username).Int("online", len(r.members)).Msg("User left.")
	return true
}

// IsTaken reports whether username is registered. Blank names count as taken.
func (r *Registry) IsTaken(username string) bool {
	if strings.TrimSpace(username) == "" {
		return true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.members[username]
	return ok
}

// ListOtherUsernames returns the sorted usernames of everyone but excluding.
func (r *Registry) ListOtherUsernames(excluding string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.members))
	for name := range r.members {
		if name != excluding {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Usernames returns every registered username, sorted.
func (r *Registry) Usernames() []string {
	return r.ListOtherUsernames("")
}

// Count returns the number of registered members.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Connected filters usernames down to the registered ones, keeping their order.
func (r *Registry) Connected(usernames []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connected := make([]string, 0, len(usernames))
	for _, name := range usernames {
		if _, ok := r.members[name]; ok {
			connected = append(connected, name)
		}
	}
	return connected
}

// BroadcastExcept delivers line to every member except excluded.
func (r *Registry) BroadcastExcept(line, excluded string) {
	r.deliver(line, r.snapshot(func(name string) bool { return name != excluded }))
}

// SendTo delivers line to the registered members among usernames and
// returns how many were found. Each member receives line at most once.
func (r *Registry) SendTo(line string, usernames []string) int {
	wanted := make(map[string]struct{}, len(usernames))
	for _, name := range usernames {
		wanted[name] = struct{}{}
	}

	targets := r.snapshot(func(name string) bool {
		_, ok := wanted[name]
		return ok
	})
	r.deliver(line, targets)
	return len(targets)
}

// DisconnectAll closes every registered member. Entries are removed by the
// sessions themselves as they wind down.
func (r *Registry) DisconnectAll() {
	members := r.snapshot(func(string) bool { return true })

	r.logger.Info().Int("count", len(members)).Msg("Disconnecting all users.")
	for _, m := range members {
		m.Close()
	}
}

func (r *Registry) snapshot(keep func(name string) bool) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]Member, 0, len(r.members))
	for name, m := range r.members {
		if keep(name) {
			members = append(members, m)
		}
	}
	return members
}

// deliver queues line for each member. A member whose queue is full is
// disconnected rather than allowed to hold up everyone else.
func (r *Registry) deliver(line string, members []Member) {
	for _, m := range members {
		if !m.Deliver(line) {
			r.logger.Warn().Str("username", m.Username()).Msg("Outbox full or closed, disconnecting user.")
			m.Close()
		}
	}
}
