package auth

import "errors"

var (
	// ErrInvalidInput indicates a malformed or empty argument.
	ErrInvalidInput = errors.New("auth: invalid input")
	// ErrTokenExpired indicates the token's expiry is in the past.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid covers every other verification failure: bad
	// signature, wrong key, truncated payload, unsupported algorithm.
	ErrTokenInvalid = errors.New("auth: token invalid")
	// ErrWrongTokenKind indicates a refresh token presented where an
	// access token is required, or vice versa.
	ErrWrongTokenKind = errors.New("auth: wrong token kind")
	// ErrPermissionDenied indicates a failed authorization decision.
	ErrPermissionDenied = errors.New("auth: permission denied")
	// ErrUnauthorized is the coarse outcome returned to callers for any
	// authentication failure; the precise reason goes to the audit sink.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrNotFound indicates a missing store record.
	ErrNotFound = errors.New("auth: not found")
	// ErrAlreadyExists indicates a conflicting store record.
	ErrAlreadyExists = errors.New("auth: already exists")
)
