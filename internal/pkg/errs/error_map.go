/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the template CustomError for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many connections. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Chat Session Errors
	ErrUsernameOnline:     {Code: ErrUsernameOnline, Message: "User %s is already online."},
	ErrUsernameInvalid:    {Code: ErrUsernameInvalid, Message: "Username cannot be empty."},
	ErrNoTargetsConnected: {Code: ErrNoTargetsConnected, Message: "No valid target users connected."},

	// 4xxx: Credential Store Errors
	ErrCredentialExists: {Code: ErrCredentialExists, Message: "User %s is already registered."},
	ErrStoreCorrupt:     {Code: ErrStoreCorrupt, Message: "Credential store content is malformed.", Status: http.StatusInternalServerError},
	ErrStoreUnavailable: {Code: ErrStoreUnavailable, Message: "Credential store is unavailable.", Status: http.StatusServiceUnavailable},

	// 5xxx: Internal System Errors
	ErrUnknown:        {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrListenerFailed: {Code: ErrListenerFailed, Message: "Chat listener stopped unexpectedly.", Status: http.StatusInternalServerError},
}
