package tokencodec

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodec(t *testing.T) {
	t.Run("rejects empty secret", func(t *testing.T) {
		_, err := NewCodec(nil, "issuer", "audience")
		assert.ErrorIs(t, err, ErrMissingSecret)
	})

	t.Run("accepts non-empty secret", func(t *testing.T) {
		c, err := NewCodec([]byte("secret"), "issuer", "audience")
		require.NoError(t, err)
		assert.NotNil(t, c)
	})
}

func TestIssueAndVerify(t *testing.T) {
	codec, err := NewCodec([]byte("test-secret"), "resume-verify", "resume-app")
	require.NoError(t, err)

	subjectID := uuid.New()

	t.Run("round trip", func(t *testing.T) {
		tokenStr, issued, err := codec.Issue(subjectID, "user@example.com", PurposeEmailVerification, time.Hour)
		require.NoError(t, err)
		require.NotEmpty(t, tokenStr)
		require.NotNil(t, issued)

		claims, err := codec.Verify(tokenStr, PurposeEmailVerification)
		require.NoError(t, err)
		assert.Equal(t, subjectID.String(), claims.Subject)
		assert.Equal(t, "user@example.com", claims.Email)
		assert.Equal(t, PurposeEmailVerification, claims.Purpose)
		assert.Equal(t, "resume-verify", claims.Issuer)
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("unique jti per token", func(t *testing.T) {
		_, first, err := codec.Issue(subjectID, "user@example.com", PurposeEmailVerification, time.Hour)
		require.NoError(t, err)
		_, second, err := codec.Issue(subjectID, "user@example.com", PurposeEmailVerification, time.Hour)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("purpose mismatch", func(t *testing.T) {
		tokenStr, _, err := codec.Issue(subjectID, "user@example.com", PurposePasswordReset, time.Hour)
		require.NoError(t, err)

		_, err = codec.Verify(tokenStr, PurposeEmailVerification)
		assert.ErrorIs(t, err, ErrPurposeMismatch)
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := codec.Verify("not-a-jwt", PurposeEmailVerification)
		assert.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewCodec([]byte("different-secret"), "resume-verify", "resume-app")
		require.NoError(t, err)

		tokenStr, _, err := other.Issue(subjectID, "user@example.com", PurposeEmailVerification, time.Hour)
		require.NoError(t, err)

		_, err = codec.Verify(tokenStr, PurposeEmailVerification)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestVerifyExpired(t *testing.T) {
	current := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	codec, err := NewCodec([]byte("test-secret"), "resume-verify", "resume-app", WithTimeFunc(clock))
	require.NoError(t, err)

	tokenStr, claims, err := codec.Issue(uuid.New(), "user@example.com", PurposeEmailVerification, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, current.Add(time.Hour), claims.ExpiresAt.Time)

	// Still valid just before expiry.
	current = current.Add(59 * time.Minute)
	_, err = codec.Verify(tokenStr, PurposeEmailVerification)
	require.NoError(t, err)

	// Invalid once the clock passes the expiry instant.
	current = current.Add(2 * time.Minute)
	_, err = codec.Verify(tokenStr, PurposeEmailVerification)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestDeriveSecret(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		first, err := DeriveSecret("root-secret")
		require.NoError(t, err)
		second, err := DeriveSecret("root-secret")
		require.NoError(t, err)

		assert.Len(t, first, 32)
		assert.Equal(t, first, second)
	})

	t.Run("different roots yield different keys", func(t *testing.T) {
		first, err := DeriveSecret("root-a")
		require.NoError(t, err)
		second, err := DeriveSecret("root-b")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("rejects empty root", func(t *testing.T) {
		_, err := DeriveSecret("")
		assert.ErrorIs(t, err, ErrMissingSecret)
	})
}
