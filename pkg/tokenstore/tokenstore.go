// Package tokenstore persists issued verification tokens. Only a one-way hash
// of each token is stored; the plaintext never touches the database.
package tokenstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/resumeworks/resume-verify/pkg/tokencodec"
)

// Used reasons recorded when a token reaches its terminal state.
const (
	UsedReasonRedeemed   = "redeemed"
	UsedReasonSuperseded = "superseded"
)

// Token is one row per issued verification token.
type Token struct {
	ID          uuid.UUID
	SubjectID   uuid.UUID
	TokenHash   string
	Email       string
	Purpose     tokencodec.Purpose
	IssuedAt    time.Time
	ExpiresAt   time.Time
	UsedAt      *time.Time
	UsedReason  *string
	Attempts    int32
	MaxAttempts int32
	CreatedByIP string
	UserAgent   string
}

// Repository defines the persistence operations for verification tokens.
type Repository interface {
	// Insert stores a new token row and returns its id.
	Insert(ctx context.Context, token *Token) (uuid.UUID, error)

	// FindByHash looks up a token by its hash. Returns ErrNotFound when absent.
	FindByHash(ctx context.Context, tokenHash string) (*Token, error)

	// InvalidatePriorUnused marks all unused, unexpired tokens for the
	// subject and purpose as used with reason "superseded". Returns the
	// number of tokens invalidated.
	InvalidatePriorUnused(ctx context.Context, subjectID uuid.UUID, purpose tokencodec.Purpose, now time.Time) (int64, error)

	// MarkUsedAtomically is a compare-and-set: it marks the token used only
	// if it is still unused. Returns false when a concurrent redemption
	// already consumed the token.
	MarkUsedAtomically(ctx context.Context, tokenID uuid.UUID, usedAt time.Time, reason string) (bool, error)

	// IncrementAttempts bumps the redemption attempt counter and returns the
	// new value.
	IncrementAttempts(ctx context.Context, tokenID uuid.UUID) (int32, error)

	// LatestPending returns the most recent unused token for the subject and
	// purpose that expires after now, or ErrNotFound.
	LatestPending(ctx context.Context, subjectID uuid.UUID, purpose tokencodec.Purpose, now time.Time) (*Token, error)

	// SweepExpired deletes tokens whose expiry has passed while still unused.
	// Returns the number of rows removed.
	SweepExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

// HashToken returns the hex-encoded SHA-256 digest of a plaintext token.
func HashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
