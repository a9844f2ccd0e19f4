package webhook

import "errors"

var (
	// ErrUserNotFound indicates no user matched the payload's email.
	ErrUserNotFound = errors.New("no user found for email")

	// ErrMissingFields indicates the payload lacks email or evento.
	ErrMissingFields = errors.New("missing required webhook fields")

	// ErrInvalidToken indicates the supplied security token does not
	// match the configured shared secret.
	ErrInvalidToken = errors.New("webhook token mismatch")
)
