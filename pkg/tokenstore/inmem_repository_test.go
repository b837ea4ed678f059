package tokenstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumeworks/resume-verify/pkg/tokencodec"
)

func newTestToken(subjectID uuid.UUID, plaintext string, issuedAt time.Time, ttl time.Duration) *Token {
	return &Token{
		SubjectID:   subjectID,
		TokenHash:   HashToken(plaintext),
		Email:       "user@example.com",
		Purpose:     tokencodec.PurposeEmailVerification,
		IssuedAt:    issuedAt,
		ExpiresAt:   issuedAt.Add(ttl),
		MaxAttempts: 5,
	}
}

func TestInMemoryInsertAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	now := time.Now().UTC()

	id, err := repo.Insert(ctx, newTestToken(uuid.New(), "tok-1", now, time.Hour))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	t.Run("found by hash", func(t *testing.T) {
		found, err := repo.FindByHash(ctx, HashToken("tok-1"))
		require.NoError(t, err)
		assert.Equal(t, id, found.ID)
		assert.Equal(t, "user@example.com", found.Email)
		assert.Nil(t, found.UsedAt)
	})

	t.Run("unknown hash", func(t *testing.T) {
		_, err := repo.FindByHash(ctx, HashToken("unknown"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("returned token is a copy", func(t *testing.T) {
		found, err := repo.FindByHash(ctx, HashToken("tok-1"))
		require.NoError(t, err)
		found.Email = "mutated@example.com"

		again, err := repo.FindByHash(ctx, HashToken("tok-1"))
		require.NoError(t, err)
		assert.Equal(t, "user@example.com", again.Email)
	})
}

func TestInMemoryMarkUsedAtomically(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	now := time.Now().UTC()

	id, err := repo.Insert(ctx, newTestToken(uuid.New(), "tok", now, time.Hour))
	require.NoError(t, err)

	t.Run("first consumption wins", func(t *testing.T) {
		ok, err := repo.MarkUsedAtomically(ctx, id, now, UsedReasonRedeemed)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("second consumption loses", func(t *testing.T) {
		ok, err := repo.MarkUsedAtomically(ctx, id, now, UsedReasonRedeemed)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := repo.MarkUsedAtomically(ctx, uuid.New(), now, UsedReasonRedeemed)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestInMemoryMarkUsedConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	now := time.Now().UTC()

	id, err := repo.Insert(ctx, newTestToken(uuid.New(), "tok", now, time.Hour))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.MarkUsedAtomically(ctx, id, now, UsedReasonRedeemed)
			require.NoError(t, err)
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestInMemoryInvalidatePriorUnused(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	now := time.Now().UTC()
	subjectID := uuid.New()

	_, err := repo.Insert(ctx, newTestToken(subjectID, "pending-1", now.Add(-2*time.Minute), time.Hour))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, newTestToken(subjectID, "pending-2", now.Add(-time.Minute), time.Hour))
	require.NoError(t, err)

	// Expired and other-subject rows are untouched.
	_, err = repo.Insert(ctx, newTestToken(subjectID, "expired", now.Add(-2*time.Hour), time.Hour))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, newTestToken(uuid.New(), "other-subject", now, time.Hour))
	require.NoError(t, err)

	count, err := repo.InvalidatePriorUnused(ctx, subjectID, tokencodec.PurposeEmailVerification, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	superseded, err := repo.FindByHash(ctx, HashToken("pending-1"))
	require.NoError(t, err)
	require.NotNil(t, superseded.UsedAt)
	require.NotNil(t, superseded.UsedReason)
	assert.Equal(t, UsedReasonSuperseded, *superseded.UsedReason)

	other, err := repo.FindByHash(ctx, HashToken("other-subject"))
	require.NoError(t, err)
	assert.Nil(t, other.UsedAt)
}

func TestInMemoryIncrementAttempts(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	now := time.Now().UTC()

	id, err := repo.Insert(ctx, newTestToken(uuid.New(), "tok", now, time.Hour))
	require.NoError(t, err)

	for expected := int32(1); expected <= 3; expected++ {
		attempts, err := repo.IncrementAttempts(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, expected, attempts)
	}

	_, err = repo.IncrementAttempts(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryLatestPending(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	now := time.Now().UTC()
	subjectID := uuid.New()

	t.Run("empty repository", func(t *testing.T) {
		_, err := repo.LatestPending(ctx, subjectID, tokencodec.PurposeEmailVerification, now)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	olderID, err := repo.Insert(ctx, newTestToken(subjectID, "older", now.Add(-10*time.Minute), time.Hour))
	require.NoError(t, err)
	newerID, err := repo.Insert(ctx, newTestToken(subjectID, "newer", now.Add(-5*time.Minute), time.Hour))
	require.NoError(t, err)

	t.Run("returns newest pending", func(t *testing.T) {
		pending, err := repo.LatestPending(ctx, subjectID, tokencodec.PurposeEmailVerification, now)
		require.NoError(t, err)
		assert.Equal(t, newerID, pending.ID)
	})

	t.Run("falls back once newest is consumed", func(t *testing.T) {
		ok, err := repo.MarkUsedAtomically(ctx, newerID, now, UsedReasonRedeemed)
		require.NoError(t, err)
		require.True(t, ok)

		pending, err := repo.LatestPending(ctx, subjectID, tokencodec.PurposeEmailVerification, now)
		require.NoError(t, err)
		assert.Equal(t, olderID, pending.ID)
	})
}

func TestInMemorySweepExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	now := time.Now().UTC()
	subjectID := uuid.New()

	_, err := repo.Insert(ctx, newTestToken(subjectID, "expired-unused", now.Add(-3*time.Hour), time.Hour))
	require.NoError(t, err)
	usedID, err := repo.Insert(ctx, newTestToken(subjectID, "expired-used", now.Add(-3*time.Hour), time.Hour))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, newTestToken(subjectID, "live", now, time.Hour))
	require.NoError(t, err)

	ok, err := repo.MarkUsedAtomically(ctx, usedID, now.Add(-2*time.Hour-30*time.Minute), UsedReasonRedeemed)
	require.NoError(t, err)
	require.True(t, ok)

	count, err := repo.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Consumed rows survive as the audit-relevant record of redemption.
	_, err = repo.FindByHash(ctx, HashToken("expired-used"))
	assert.NoError(t, err)
	_, err = repo.FindByHash(ctx, HashToken("live"))
	assert.NoError(t, err)
	_, err = repo.FindByHash(ctx, HashToken("expired-unused"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHashToken(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}
