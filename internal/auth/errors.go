package auth

import "errors"

var (
	// ErrInvalidCredentials collapses every login failure into one message so
	// callers cannot distinguish an unknown email from a wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")

	ErrRateLimited           = errors.New("auth: too many attempts")
	ErrTokenMalformed        = errors.New("auth: token malformed")
	ErrTokenExpired          = errors.New("auth: token expired")
	ErrTokenSignatureInvalid = errors.New("auth: token signature invalid")
	ErrPermissionDenied      = errors.New("auth: permission denied")
	ErrNotFound              = errors.New("auth: not found")
	ErrAlreadyExists         = errors.New("auth: already exists")
	ErrInvalidInput          = errors.New("auth: invalid input")
)
