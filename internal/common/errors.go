// Package common defines shared constants and sentinel errors used across
// client and server layers of finsync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Transport / connectivity errors.
	ErrUnavailable = errors.New("server unavailable")
	ErrTimeout     = errors.New("request timed out")

	// Session errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUnauthorized       = errors.New("unauthorized")

	// Sync flow control.
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrConflict       = errors.New("version conflict")
	ErrDuplicate      = errors.New("duplicate record")

	// Protocol / data errors.
	ErrMalformedResponse = errors.New("malformed response")
	ErrInvalidData       = errors.New("invalid data")
)
