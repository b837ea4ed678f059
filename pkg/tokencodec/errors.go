package tokencodec

import "errors"

var (
	// ErrMalformedToken is returned when a token is not a well-formed compact token
	ErrMalformedToken = errors.New("malformed verification token")

	// ErrInvalidSignature is returned when the token signature does not match
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrTokenExpired is returned when the token is past its expiry time
	ErrTokenExpired = errors.New("verification token has expired")

	// ErrPurposeMismatch is returned when the token was issued for a different purpose
	ErrPurposeMismatch = errors.New("token purpose mismatch")

	// ErrMissingSecret is returned when no signing secret is configured
	ErrMissingSecret = errors.New("signing secret is not configured")
)
