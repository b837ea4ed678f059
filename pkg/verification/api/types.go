package api

// IssueTokenRequest is the body for POST /verification/tokens. Email is
// optional; when omitted the authenticated identity's email is used.
type IssueTokenRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// IssueTokenResponse is returned on successful issuance.
type IssueTokenResponse struct {
	Message   string `json:"message"`
	ExpiresAt string `json:"expires_at"`
}

// StatusResponse is returned by GET /verification/status.
type StatusResponse struct {
	IsVerified           bool    `json:"is_verified"`
	VerifiedAt           *string `json:"verified_at"`
	HasValidPendingToken bool    `json:"has_valid_pending_token"`
	TokenExpiresAt       *string `json:"token_expires_at"`
	AttemptsRemaining    *int32  `json:"attempts_remaining"`
}

// RateLimitedResponse is returned with status 429.
type RateLimitedResponse struct {
	Error   string `json:"error"`
	ResetAt string `json:"reset_at"`
}

// ErrorResponse is the generic error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
