package verification

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformedToken is returned when a token is not a well-formed compact token
	ErrMalformedToken = errors.New("malformed verification token")

	// ErrInvalidSignature is returned when the token signature does not match
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrTokenExpired is returned when the token is past its expiry time
	ErrTokenExpired = errors.New("verification token has expired")

	// ErrTokenNotFound is returned when no stored token matches; this also
	// covers tokens signed with a since-rotated secret
	ErrTokenNotFound = errors.New("verification token not found")

	// ErrAlreadyUsed is returned when the token was already redeemed,
	// superseded, or lost a concurrent redemption race
	ErrAlreadyUsed = errors.New("verification token has already been used")

	// ErrAlreadyVerified is returned when issuing a token for a subject whose
	// email is already verified
	ErrAlreadyVerified = errors.New("email already verified")

	// ErrRateLimited is returned when the resend budget or the per-token
	// attempt ceiling is exhausted
	ErrRateLimited = errors.New("too many verification requests, please try again later")

	// ErrDeliveryFailed is returned when the email provider rejects the send;
	// the token row still exists
	ErrDeliveryFailed = errors.New("failed to deliver verification email")

	// ErrPersistence is returned on backing-store failure
	ErrPersistence = errors.New("verification store unavailable")

	// ErrTimeout is returned when an external call times out; callers must
	// not mistake it for a definitive denial
	ErrTimeout = errors.New("verification operation timed out")

	// ErrServerMisconfigured is returned for invalid deployment configuration,
	// e.g. a missing signing secret outside the dev bypass profile
	ErrServerMisconfigured = errors.New("verification service misconfigured")
)

// RateLimitError carries the time at which capacity frees up so clients can
// back off. errors.Is(err, ErrRateLimited) matches it.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
