package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/resumeworks/resume-verify/pkg/gate"
	"github.com/resumeworks/resume-verify/pkg/ratelimit"
	"github.com/resumeworks/resume-verify/pkg/verification"
)

// Handler serves the verification HTTP surface.
type Handler struct {
	service    *verification.Service
	validate   *validator.Validate
	successURL string
	failureURL string
}

// NewHandler creates a new verification API handler. Redemption is browser
// navigated, so success and failure land on redirect URLs rather than JSON.
func NewHandler(service *verification.Service, successURL, failureURL string) *Handler {
	return &Handler{
		service:    service,
		validate:   validator.New(),
		successURL: successURL,
		failureURL: failureURL,
	}
}

// IssueToken handles POST /verification/tokens.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	identity, ok := gate.IdentityFromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "Unauthorized"})
		return
	}

	var req IssueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid email address"})
		return
	}

	email := req.Email
	if email == "" {
		email = identity.Email
	}
	if email == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Email is required"})
		return
	}

	result, err := h.service.IssueToken(r.Context(), identity.SubjectID, email, ratelimit.ClientIP(r), r.UserAgent())
	if err != nil {
		var rateErr *verification.RateLimitError
		switch {
		case errors.As(err, &rateErr):
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, RateLimitedResponse{
				Error:   "Too many verification emails sent. Please try again later",
				ResetAt: rateErr.ResetAt.UTC().Format(time.RFC3339),
			})
		case errors.Is(err, verification.ErrAlreadyVerified):
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{Error: "Email is already verified"})
		case errors.Is(err, verification.ErrDeliveryFailed):
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, ErrorResponse{Error: "Failed to deliver verification email"})
		default:
			slog.Error("Failed to issue verification token", "err", err)
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, ErrorResponse{Error: "An error occurred while sending verification email"})
		}
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, IssueTokenResponse{
		Message:   "Verification email sent",
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Redeem handles GET /verification/redeem?token=... It always answers with a
// 302 to a human-readable page, never JSON: the link is opened by a browser.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.redirectFailure(w, r, "malformed_token")
		return
	}

	_, err := h.service.RedeemToken(r.Context(), token, ratelimit.ClientIP(r), r.UserAgent())
	if err != nil {
		h.redirectFailure(w, r, redeemFailureCode(err))
		return
	}

	http.Redirect(w, r, h.successURL, http.StatusFound)
}

// Status handles GET /verification/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	identity, ok := gate.IdentityFromContext(r.Context())
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "Unauthorized"})
		return
	}

	status, err := h.service.GetStatus(r.Context(), identity.SubjectID)
	if err != nil {
		slog.Error("Failed to get verification status", "identity", identity, "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "An error occurred while retrieving verification status"})
		return
	}

	resp := StatusResponse{
		IsVerified:           status.IsVerified,
		HasValidPendingToken: status.HasValidPendingToken,
		AttemptsRemaining:    status.AttemptsRemaining,
	}
	if status.VerifiedAt != nil {
		verifiedAt := status.VerifiedAt.UTC().Format(time.RFC3339)
		resp.VerifiedAt = &verifiedAt
	}
	if status.TokenExpiresAt != nil {
		expiresAt := status.TokenExpiresAt.UTC().Format(time.RFC3339)
		resp.TokenExpiresAt = &expiresAt
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (h *Handler) redirectFailure(w http.ResponseWriter, r *http.Request, code string) {
	target := h.failureURL
	if u, err := url.Parse(h.failureURL); err == nil {
		q := u.Query()
		q.Set("reason", code)
		u.RawQuery = q.Encode()
		target = u.String()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func redeemFailureCode(err error) string {
	switch {
	case errors.Is(err, verification.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, verification.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, verification.ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, verification.ErrTokenNotFound):
		return "token_not_found"
	case errors.Is(err, verification.ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, verification.ErrRateLimited):
		return "rate_limited"
	default:
		slog.Error("Failed to redeem verification token", "err", err)
		return "server_error"
	}
}
