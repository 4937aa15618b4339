/*
Package randx provides generators for unique identifiers.

It is used to tag every accepted chat connection with an opaque session id
that survives into the log stream even before the user has authenticated.
*/
package randx

import (
	"github.com/google/uuid"
)

// SessionID generates a UUID v4 string identifying a single connection.
func SessionID() string {
	return uuid.New().String()
}

// IsValidSessionID reports whether id is a UUID produced by SessionID.
func IsValidSessionID(id string) bool {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	return parsed.Version() == 4
}
