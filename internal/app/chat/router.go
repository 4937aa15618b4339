/*
Package chat contains the line protocol server.

This file defines the Router, which turns a joined user's input line into a
broadcast to everyone else or a private message to selected users.
*/
package chat

import (
	"strings"

	"github.com/rs/zerolog"

	"linechat/internal/pkg/errs"
	"linechat/internal/pkg/logx"
)

// PrivateMessage is a parsed "->targets: body" command.
type PrivateMessage struct {
	// Targets are the non-empty usernames as typed, repeats included.
	Targets []string

	// Body is the trimmed text after the first colon.
	Body string
}

// ParsePrivate parses line as a private message command. It reports false
// when line is not one, in which case the caller treats it as a broadcast.
// A command needs a colon after at least one character of target list.
func ParsePrivate(line string) (PrivateMessage, bool) {
	rest, ok := strings.CutPrefix(line, PrivatePrefix)
	if !ok {
		return PrivateMessage{}, false
	}
	rest = strings.TrimSpace(rest)

	colon := strings.IndexByte(rest, ':')
	if colon <= 0 {
		return PrivateMessage{}, false
	}

	var targets []string
	for _, t := range strings.Split(rest[:colon], ",") {
		if t = strings.TrimSpace(t); t != "" {
			targets = append(targets, t)
		}
	}

	return PrivateMessage{
		Targets: targets,
		Body:    strings.TrimSpace(rest[colon+1:]),
	}, true
}

// Router routes lines from joined users through the Registry.
type Router struct {
	// registry holds the joined users lines are routed to.
	registry *Registry

	// structured logger with Router context.
	logger zerolog.Logger
}

// NewRouter returns a Router delivering through registry.
func NewRouter(registry *Registry) *Router {
	return &Router{
		registry: registry,
		logger:   logx.Component("Router"),
	}
}

// Dispatch handles one input line from sender. Blank lines are dropped.
func (rt *Router) Dispatch(sender Member, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	if pm, ok := ParsePrivate(line); ok {
		if err := rt.SendPrivate(sender, pm); err != nil {
			sender.Deliver(MsgNoTargets)
		}
		return
	}

	rt.registry.BroadcastExcept(BroadcastLine(sender.Username(), line), sender.Username())
}

// SendPrivate delivers pm once to each connected target. It fails with
// ErrNoTargetsConnected when none of them is joined.
func (rt *Router) SendPrivate(sender Member, pm PrivateMessage) error {
	connected := rt.registry.Connected(pm.Targets)
	if len(connected) == 0 {
		rt.logger.Debug().Str("sender", sender.Username()).Strs("targets", pm.Targets).Msg("No private message target is online.")
		return errs.NewError(errs.ErrNoTargetsConnected)
	}

	rt.registry.SendTo(PrivateLine(sender.Username(), connected, pm.Body), connected)
	return nil
}

// Announce broadcasts a system line about username to everyone else.
func (rt *Router) Announce(username, line string) {
	rt.registry.BroadcastExcept(line, username)
}
