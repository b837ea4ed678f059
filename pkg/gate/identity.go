// Package gate protects routes that require an authenticated, email-verified
// identity. Authentication is delegated to an IdentityProvider; verification
// status comes from the verification service's own store.
package gate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

var (
	// ErrMissingToken is returned when no bearer credential is present
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken is returned when the bearer credential cannot be validated
	ErrInvalidToken = errors.New("invalid bearer token")

	// ErrTokenExpired is returned when the bearer credential has expired
	ErrTokenExpired = errors.New("bearer token has expired")
)

// Identity is the resolved caller identity.
type Identity struct {
	SubjectID uuid.UUID
	Email     string
}

func (i Identity) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("subject_id", i.SubjectID.String()),
		slog.String("email", i.Email),
	)
}

// IdentityProvider validates a bearer credential and returns the identity it
// belongs to. Implementations map their own failures onto ErrInvalidToken and
// ErrTokenExpired.
type IdentityProvider interface {
	ResolveBearer(ctx context.Context, bearer string) (*Identity, error)
}

// contextKey is a value for use with context.WithValue. It's used as a
// pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "gate context value " + k.name
}

var identityKey = &contextKey{"Identity"}

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity stored by the gate middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*Identity)
	return identity, ok
}
