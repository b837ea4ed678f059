package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/resumeworks/resume-verify/pkg/verification"
)

// StatusReader is the read-only slice of the verification service the gate
// depends on.
type StatusReader interface {
	GetStatus(ctx context.Context, subjectID uuid.UUID) (*verification.Status, error)
}

// Middleware is implemented by the production Gate and the dev-only
// BypassGate.
type Middleware interface {
	// Authenticate resolves the bearer credential and stores the identity in
	// the request context; it does not require verification.
	Authenticate(next http.Handler) http.Handler

	// RequireVerified authenticates and additionally denies unverified
	// identities with a structured 403.
	RequireVerified(next http.Handler) http.Handler
}

// Gate is the production middleware.
type Gate struct {
	provider IdentityProvider
	status   StatusReader
}

// New creates a gate over the given identity provider and status reader.
func New(provider IdentityProvider, status StatusReader) *Gate {
	return &Gate{
		provider: provider,
		status:   status,
	}
}

type unauthorizedResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type forbiddenResponse struct {
	Success              bool    `json:"success"`
	Error                string  `json:"error"`
	VerificationRequired bool    `json:"verification_required"`
	HasValidToken        bool    `json:"has_valid_token"`
	TokenExpiresAt       *string `json:"token_expires_at"`
}

func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := g.resolve(r)
		if err != nil {
			g.unauthorized(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func (g *Gate) RequireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := g.resolve(r)
		if err != nil {
			g.unauthorized(w, r, err)
			return
		}

		status, err := g.status.GetStatus(r.Context(), identity.SubjectID)
		if err != nil {
			slog.Error("Failed to read verification status", "identity", identity, "err", err)
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, unauthorizedResponse{Success: false, Error: "Failed to check verification status"})
			return
		}

		if !status.IsVerified {
			resp := forbiddenResponse{
				Success:              false,
				Error:                "Email verification required",
				VerificationRequired: true,
				HasValidToken:        status.HasValidPendingToken,
			}
			if status.TokenExpiresAt != nil {
				expires := status.TokenExpiresAt.UTC().Format(time.RFC3339)
				resp.TokenExpiresAt = &expires
			}
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, resp)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func (g *Gate) resolve(r *http.Request) (*Identity, error) {
	bearer := jwtauth.TokenFromHeader(r)
	if bearer == "" {
		bearer = jwtauth.TokenFromCookie(r)
	}
	if bearer == "" {
		return nil, ErrMissingToken
	}

	return g.provider.ResolveBearer(r.Context(), bearer)
}

func (g *Gate) unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	reason := "InvalidToken"
	switch {
	case errors.Is(err, ErrMissingToken):
		reason = "MissingToken"
	case errors.Is(err, ErrTokenExpired):
		reason = "TokenExpired"
	}

	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, unauthorizedResponse{Success: false, Error: reason})
}
