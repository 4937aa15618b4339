/*
Package chat contains the line protocol server: connection transports, the
per-connection Session state machine, the Registry of joined users and the
Router that delivers broadcast and private messages.

This file defines the literal lines exchanged with clients. Clients match on
these strings, so they must not change.
*/
package chat

import (
	"fmt"
	"strings"
)

// Lines sent by the server during the handshake.
const (
	PromptUsername        = "enter username:"
	PromptPassword        = "enter password:"
	PromptRegister        = "user not found. register? (y/n)"
	MsgUsernameEmpty      = "username cannot be empty"
	MsgTooManyAttempts    = "too many wrong attempts. disconnecting..."
	MsgDifferentUsername  = "enter a different username"
	MsgUserOnline         = "user already online"
	MsgUsernameRegistered = "username already registered"
	MsgOK                 = "ok"
	MsgWelcome            = "welcome to the chat."
	MsgNoOtherUsers       = "no other users online."
)

// Lines sent by the server after the handshake.
const (
	MsgNoTargets = "no valid target users connected"
)

const (
	// MaxPasswordAttempts is the number of wrong passwords tolerated per username.
	MaxPasswordAttempts = 3

	// PrivatePrefix starts a private message command: "->alice,bob: text".
	PrivatePrefix = "->"

	// UsersOnlinePrefix starts the list of other joined users sent after "ok".
	UsersOnlinePrefix = "users online: "

	// WrongPasswordPrefix starts every wrong password notice.
	WrongPasswordPrefix = "wrong password"
)

// WrongPassword returns the notice for the n-th failed attempt.
func WrongPassword(n int) string {
	return fmt.Sprintf("%s (%d/%d)", WrongPasswordPrefix, n, MaxPasswordAttempts)
}

// UsersOnline formats the list of other joined users.
func UsersOnline(names []string) string {
	if len(names) == 0 {
		return UsersOnlinePrefix + MsgNoOtherUsers
	}
	return UsersOnlinePrefix + strings.Join(names, ", ")
}

// EnteredChat is broadcast when a user joins.
func EnteredChat(username string) string {
	return username + " entered chat"
}

// LeftChat is broadcast when a user's session ends.
func LeftChat(username string) string {
	return username + " left chat"
}

// BroadcastLine prefixes a public message with its sender.
func BroadcastLine(sender, line string) string {
	return sender + ":" + line
}

// PrivateLine formats a private message for its connected targets.
func PrivateLine(sender string, targets []string, body string) string {
	return fmt.Sprintf("(private) %s -> %s: %s", sender, strings.Join(targets, ", "), body)
}
