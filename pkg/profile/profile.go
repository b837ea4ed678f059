// Package profile stores the verification fields of a user profile. It is
// the single authoritative source for verification status; identity-provider
// flags are never consulted as a parallel source of truth.
package profile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no profile row exists for the subject
	ErrNotFound = errors.New("profile not found")
)

// VerificationStatus is the verification subset of a user profile.
// Invariant: Verified is true if and only if VerifiedAt and
// VerificationMethod are both non-nil. MarkVerified sets all three together
// so the invariant holds at the point of mutation.
type VerificationStatus struct {
	SubjectID          uuid.UUID
	Verified           bool
	VerifiedAt         *time.Time
	VerificationMethod *string
	LastTokenID        *uuid.UUID
}

// Store persists profile verification fields.
type Store interface {
	// GetStatus returns the verification status for a subject, or ErrNotFound.
	GetStatus(ctx context.Context, subjectID uuid.UUID) (*VerificationStatus, error)

	// MarkVerified records a successful verification, setting the verified
	// flag, timestamp, method and redeemed token id in one mutation.
	MarkVerified(ctx context.Context, subjectID uuid.UUID, verifiedAt time.Time, method string, tokenID uuid.UUID) error
}
