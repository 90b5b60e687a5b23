/*
Package errs provides custom error types and application-level error code constants.

This file defines the error codes and the map from codes to their CustomError
templates, used for server-to-client error reporting over both HTTP and WebSocket.
*/
package errs

import "net/http"

// 1xxx: General Request Handling Errors
const (
	// ErrRateLimitExceeded indicates that the request rate exceeded the set limit.
	ErrRateLimitExceeded = 1001
)

// 2xxx: Presence Business Logic Errors
const (
	// ErrNameTaken indicates that the requested display name is already in use
	// by an active user. The only recoverable error the core can produce; the
	// client must resubmit the join with a different name.
	ErrNameTaken = 2001
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified server internal error.
	ErrUnknown = 5000
)

// errorMap stores the CustomError template corresponding to every error code.
// A zero Status defaults to HTTP 200 at construction time.
var errorMap = map[int]CustomError{
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	ErrNameTaken: {Code: ErrNameTaken, Message: "This name is already taken."},

	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
