// Package tokencodec issues and verifies signed, time-bound verification
// tokens. Tokens are HS256-signed compact JWTs carrying the owning subject,
// the email being verified, the token purpose and a unique jti.
package tokencodec

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// Purpose identifies the intended use of a verification token.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
	PurposeReauthentication  Purpose = "reauthentication"
)

// derivationInfo keys the HKDF expansion so a derived signing key can never
// collide with any other key derived from the same root secret.
const derivationInfo = "resume-verify/token-signing/v1"

// Claims is the payload carried by a verification token.
type Claims struct {
	Email   string  `json:"email"`
	Purpose Purpose `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies verification tokens with a process-wide secret.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithTimeFunc overrides the clock used for issuing and validating tokens.
func WithTimeFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec creates a codec signing with the given secret.
func NewCodec(secret []byte, issuer, audience string, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}

	c := &Codec{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// DeriveSecret derives a 32-byte signing secret from a root secret via
// HKDF-SHA256. The derivation is deterministic, so restarts reuse the same
// verification key without persisting it separately. This is a fallback for
// deployments without an explicit signing secret: if the root secret rotates,
// the derived key changes and all outstanding tokens become invalid.
func DeriveSecret(rootSecret string) ([]byte, error) {
	if rootSecret == "" {
		return nil, ErrMissingSecret
	}

	r := hkdf.New(sha256.New, []byte(rootSecret), nil, []byte(derivationInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive signing secret: %w", err)
	}

	return key, nil
}

// Issue creates a signed token for the given subject, email and purpose.
func (c *Codec) Issue(subjectID uuid.UUID, email string, purpose Purpose, ttl time.Duration) (string, *Claims, error) {
	now := c.now().UTC()
	claims := &Claims{
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.issuer,
			Subject:   subjectID.String(),
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{c.audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(c.secret)
	if err != nil {
		slog.Error("Failed to sign verification token", "err", err)
		return "", nil, err
	}

	return ss, claims, nil
}

// Verify parses the token, checks the signature and expiry, and confirms the
// token was issued for the expected purpose.
func (c *Codec) Verify(tokenStr string, purpose Purpose) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		default:
			slog.Error("Failed to parse verification token", "err", err)
			return nil, ErrMalformedToken
		}
	}

	if claims.Purpose != purpose {
		return nil, ErrPurposeMismatch
	}

	return claims, nil
}
