package shared

import "errors"

// Sentinel errors shared across the account and session layers.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials covers unknown accounts, wrong passwords and
	// disabled accounts alike, so responses cannot enumerate usernames.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when no CSRF token accompanies a write.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when the supplied CSRF token does not
	// match the session's token.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
