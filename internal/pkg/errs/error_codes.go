/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific chat, credential store and system errors
both inside the server and in the JSON responses of the status API.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrRateLimitExceeded indicates that the connection rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Chat Session Errors
const (
	// ErrUsernameOnline indicates that a session for the username is already registered.
	ErrUsernameOnline = 2101

	// ErrUsernameInvalid indicates a blank or otherwise unusable username.
	ErrUsernameInvalid = 2102

	// ErrNoTargetsConnected indicates that none of the private message targets is online.
	ErrNoTargetsConnected = 2201
)

// 4xxx: Credential Store Errors
const (
	// ErrCredentialExists indicates that a credential with the same username is already stored.
	ErrCredentialExists = 4001

	// ErrStoreCorrupt indicates that persisted credentials could not be decoded.
	ErrStoreCorrupt = 4002

	// ErrStoreUnavailable indicates that the credential backend could not be read or written.
	ErrStoreUnavailable = 4003
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrListenerFailed indicates that the accept loop stopped on a socket error.
	ErrListenerFailed = 5001
)
