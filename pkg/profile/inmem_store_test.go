package profile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	subjectID := uuid.New()

	t.Run("unknown subject", func(t *testing.T) {
		_, err := store.GetStatus(ctx, subjectID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("mark verified", func(t *testing.T) {
		verifiedAt := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
		tokenID := uuid.New()

		require.NoError(t, store.MarkVerified(ctx, subjectID, verifiedAt, "email_verification", tokenID))

		status, err := store.GetStatus(ctx, subjectID)
		require.NoError(t, err)
		assert.True(t, status.Verified)
		require.NotNil(t, status.VerifiedAt)
		assert.Equal(t, verifiedAt, *status.VerifiedAt)
		require.NotNil(t, status.VerificationMethod)
		assert.Equal(t, "email_verification", *status.VerificationMethod)
		require.NotNil(t, status.LastTokenID)
		assert.Equal(t, tokenID, *status.LastTokenID)
	})

	t.Run("returned status is a copy", func(t *testing.T) {
		status, err := store.GetStatus(ctx, subjectID)
		require.NoError(t, err)
		status.Verified = false

		again, err := store.GetStatus(ctx, subjectID)
		require.NoError(t, err)
		assert.True(t, again.Verified)
	})
}
