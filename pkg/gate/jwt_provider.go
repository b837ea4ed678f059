package gate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

// JWTIdentityProvider resolves bearer credentials as HS256 JWTs issued by the
// application's identity provider.
type JWTIdentityProvider struct {
	ja *jwtauth.JWTAuth
}

// NewJWTIdentityProvider creates a provider verifying tokens with the given
// shared secret.
func NewJWTIdentityProvider(secret string) *JWTIdentityProvider {
	return &JWTIdentityProvider{
		ja: jwtauth.New("HS256", []byte(secret), nil),
	}
}

// JWTAuth exposes the underlying verifier so callers can mint tokens in dev
// and test flows.
func (p *JWTIdentityProvider) JWTAuth() *jwtauth.JWTAuth {
	return p.ja
}

func (p *JWTIdentityProvider) ResolveBearer(ctx context.Context, bearer string) (*Identity, error) {
	token, err := jwtauth.VerifyToken(p.ja, bearer)
	if err != nil {
		if errors.Is(err, jwtauth.ErrExpired) {
			return nil, ErrTokenExpired
		}
		slog.Debug("Bearer token verification failed", "err", err)
		return nil, ErrInvalidToken
	}

	subjectID, err := uuid.Parse(token.Subject())
	if err != nil {
		return nil, ErrInvalidToken
	}

	identity := &Identity{SubjectID: subjectID}
	if email, ok := token.PrivateClaims()["email"].(string); ok {
		identity.Email = email
	}

	return identity, nil
}
