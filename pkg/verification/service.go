// Package verification orchestrates the email verification token lifecycle:
// issuance, single-use redemption, expiry, resend throttling and audit.
//
// Per (subject, purpose) the lifecycle is a small state machine:
// NoToken -> Pending (issued, unexpired, unused) -> Verified (terminal) or
// Expired (terminal until a new token returns the subject to Pending).
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/resumeworks/resume-verify/pkg/audit"
	"github.com/resumeworks/resume-verify/pkg/profile"
	"github.com/resumeworks/resume-verify/pkg/ratelimit"
	"github.com/resumeworks/resume-verify/pkg/tokencodec"
	"github.com/resumeworks/resume-verify/pkg/tokenstore"
)

// EmailSender delivers a verification link to a recipient.
type EmailSender interface {
	SendVerificationEmail(ctx context.Context, to, link string, expiresAt time.Time) error
}

// Service orchestrates token issuance, redemption and status queries.
type Service struct {
	tokens   tokenstore.Repository
	profiles profile.Store
	codec    *tokencodec.Codec
	limiter  ratelimit.Limiter
	auditLog audit.Recorder
	sender   EmailSender
	baseURL  string

	tokenTTL     time.Duration
	maxAttempts  int32
	resendLimit  int
	resendWindow time.Duration
	now          func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTokenTTL sets the token expiration duration.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.tokenTTL = ttl
	}
}

// WithMaxAttempts sets the per-token redemption attempt ceiling.
func WithMaxAttempts(max int32) ServiceOption {
	return func(s *Service) {
		s.maxAttempts = max
	}
}

// WithResendLimit sets the maximum number of issuances within the resend window.
func WithResendLimit(limit int) ServiceOption {
	return func(s *Service) {
		s.resendLimit = limit
	}
}

// WithResendWindow sets the trailing window for resend throttling.
func WithResendWindow(window time.Duration) ServiceOption {
	return func(s *Service) {
		s.resendWindow = window
	}
}

// WithClock overrides the service clock.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a verification service.
func NewService(
	tokens tokenstore.Repository,
	profiles profile.Store,
	codec *tokencodec.Codec,
	limiter ratelimit.Limiter,
	auditLog audit.Recorder,
	sender EmailSender,
	baseURL string,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		tokens:       tokens,
		profiles:     profiles,
		codec:        codec,
		limiter:      limiter,
		auditLog:     auditLog,
		sender:       sender,
		baseURL:      baseURL,
		tokenTTL:     24 * time.Hour,
		maxAttempts:  5,
		resendLimit:  3,
		resendWindow: 1 * time.Hour,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// IssueResult is returned on successful issuance. Token carries the plaintext
// so test/dev flows can complete verification without reading email.
type IssueResult struct {
	TokenID   uuid.UUID
	Token     string
	VerifyURL string
	ExpiresAt time.Time
}

// RedeemResult is returned on successful redemption.
type RedeemResult struct {
	SubjectID  uuid.UUID
	Email      string
	VerifiedAt time.Time
}

// Status is the read-only verification status for a subject.
type Status struct {
	IsVerified           bool
	VerifiedAt           *time.Time
	HasValidPendingToken bool
	TokenExpiresAt       *time.Time
	AttemptsRemaining    *int32
}

// IssueToken throttles, supersedes prior tokens, persists a new signed token
// and asks the email provider to deliver the link. On delivery failure the
// result is still returned alongside ErrDeliveryFailed: the token row exists
// and an undelivered link gives the user no way to complete verification, so
// the failure is surfaced rather than swallowed.
func (s *Service) IssueToken(ctx context.Context, subjectID uuid.UUID, email, ip, userAgent string) (*IssueResult, error) {
	now := s.now().UTC()

	status, err := s.profiles.GetStatus(ctx, subjectID)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		return nil, s.storeFailure("get profile status", subjectID, err)
	}
	if status != nil && status.Verified {
		slog.Info("Email already verified", "subject_id", subjectID)
		return nil, ErrAlreadyVerified
	}

	res, err := s.limiter.CheckAndRecord(ctx, "resend:"+subjectID.String(), s.resendWindow, s.resendLimit)
	if err != nil {
		// Fail open: an unavailable limiter backend must not lock out
		// legitimate users, but the gap is made visible.
		slog.Error("Resend limiter unavailable, failing open", "subject_id", subjectID, "err", err)
		s.auditLog.Record(ctx, audit.Entry{
			SubjectID: &subjectID,
			Action:    audit.ActionLimiterFailOpen,
			IP:        ip,
			UserAgent: userAgent,
			Success:   false,
			ErrorMessage: errMessage(err),
		})
	} else if !res.Allowed {
		slog.Warn("Resend rate limit exceeded", "subject_id", subjectID, "reset_at", res.ResetAt)
		s.auditLog.Record(ctx, audit.Entry{
			SubjectID: &subjectID,
			Action:    audit.ActionRateLimited,
			IP:        ip,
			UserAgent: userAgent,
			Success:   false,
		})
		return nil, &RateLimitError{ResetAt: res.ResetAt}
	}

	superseded, err := s.tokens.InvalidatePriorUnused(ctx, subjectID, tokencodec.PurposeEmailVerification, now)
	if err != nil {
		return nil, s.storeFailure("invalidate prior tokens", subjectID, err)
	}
	if superseded > 0 {
		s.auditLog.Record(ctx, audit.Entry{
			SubjectID: &subjectID,
			Action:    audit.ActionTokenSuperseded,
			IP:        ip,
			UserAgent: userAgent,
			Success:   true,
		})
	}

	plaintext, claims, err := s.codec.Issue(subjectID, email, tokencodec.PurposeEmailVerification, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue verification token: %w", err)
	}

	token := &tokenstore.Token{
		SubjectID:   subjectID,
		TokenHash:   tokenstore.HashToken(plaintext),
		Email:       email,
		Purpose:     tokencodec.PurposeEmailVerification,
		IssuedAt:    claims.IssuedAt.Time,
		ExpiresAt:   claims.ExpiresAt.Time,
		MaxAttempts: s.maxAttempts,
		CreatedByIP: ip,
		UserAgent:   userAgent,
	}

	tokenID, err := s.tokens.Insert(ctx, token)
	if err != nil {
		return nil, s.storeFailure("insert token", subjectID, err)
	}

	s.auditLog.Record(ctx, audit.Entry{
		SubjectID:      &subjectID,
		Action:         audit.ActionTokenIssued,
		IP:             ip,
		UserAgent:      userAgent,
		Success:        true,
		RelatedTokenID: &tokenID,
	})

	result := &IssueResult{
		TokenID:   tokenID,
		Token:     plaintext,
		VerifyURL: fmt.Sprintf("%s/verification/redeem?token=%s", s.baseURL, url.QueryEscape(plaintext)),
		ExpiresAt: claims.ExpiresAt.Time,
	}

	if err := s.sender.SendVerificationEmail(ctx, email, result.VerifyURL, result.ExpiresAt); err != nil {
		slog.Error("Failed to send verification email", "subject_id", subjectID, "err", err)
		s.auditLog.Record(ctx, audit.Entry{
			SubjectID:      &subjectID,
			Action:         audit.ActionDeliveryFailed,
			IP:             ip,
			UserAgent:      userAgent,
			Success:        false,
			ErrorMessage:   errMessage(err),
			RelatedTokenID: &tokenID,
		})
		return result, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	slog.Info("Verification token issued", "subject_id", subjectID, "token_id", tokenID, "expires_at", result.ExpiresAt)
	return result, nil
}

// RedeemToken validates the token signature and store state, consumes the
// token via compare-and-set, and marks the subject verified. At most one of
// any number of concurrent redemptions of the same token succeeds.
func (s *Service) RedeemToken(ctx context.Context, plaintext, ip, userAgent string) (*RedeemResult, error) {
	now := s.now().UTC()

	claims, err := s.codec.Verify(plaintext, tokencodec.PurposeEmailVerification)
	if err != nil {
		mapped := mapCodecError(err)
		s.recordRedeemFailure(ctx, nil, nil, ip, userAgent, mapped)
		return nil, mapped
	}

	subjectID, err := uuid.Parse(claims.Subject)
	if err != nil {
		s.recordRedeemFailure(ctx, nil, nil, ip, userAgent, ErrMalformedToken)
		return nil, ErrMalformedToken
	}

	row, err := s.tokens.FindByHash(ctx, tokenstore.HashToken(plaintext))
	if err != nil {
		if errors.Is(err, tokenstore.ErrNotFound) {
			s.recordRedeemFailure(ctx, &subjectID, nil, ip, userAgent, ErrTokenNotFound)
			return nil, ErrTokenNotFound
		}
		return nil, s.storeFailure("find token", subjectID, err)
	}

	if row.UsedAt != nil {
		s.recordRedeemFailure(ctx, &subjectID, &row.ID, ip, userAgent, ErrAlreadyUsed)
		return nil, ErrAlreadyUsed
	}

	// Expiry is enforced on the stored row as well as the signature.
	if !row.ExpiresAt.After(now) {
		s.recordRedeemFailure(ctx, &subjectID, &row.ID, ip, userAgent, ErrTokenExpired)
		return nil, ErrTokenExpired
	}

	attempts, err := s.tokens.IncrementAttempts(ctx, row.ID)
	if err != nil {
		return nil, s.storeFailure("increment attempts", subjectID, err)
	}
	if attempts > row.MaxAttempts {
		s.recordRedeemFailure(ctx, &subjectID, &row.ID, ip, userAgent, ErrRateLimited)
		return nil, ErrRateLimited
	}

	ok, err := s.tokens.MarkUsedAtomically(ctx, row.ID, now, tokenstore.UsedReasonRedeemed)
	if err != nil {
		return nil, s.storeFailure("mark token used", subjectID, err)
	}
	if !ok {
		// Lost the redemption race.
		s.recordRedeemFailure(ctx, &subjectID, &row.ID, ip, userAgent, ErrAlreadyUsed)
		return nil, ErrAlreadyUsed
	}

	if err := s.profiles.MarkVerified(ctx, subjectID, now, string(row.Purpose), row.ID); err != nil {
		slog.Error("Token consumed but profile update failed", "subject_id", subjectID, "token_id", row.ID, "err", err)
		return nil, s.storeFailure("mark profile verified", subjectID, err)
	}

	s.auditLog.Record(ctx, audit.Entry{
		SubjectID:      &subjectID,
		Action:         audit.ActionTokenRedeemed,
		IP:             ip,
		UserAgent:      userAgent,
		Success:        true,
		RelatedTokenID: &row.ID,
	})

	slog.Info("Email verified", "subject_id", subjectID, "token_id", row.ID)
	return &RedeemResult{
		SubjectID:  subjectID,
		Email:      row.Email,
		VerifiedAt: now,
	}, nil
}

// GetStatus combines the profile record with the most recent pending token.
// It is a pure read and never mutates token or identity state.
func (s *Service) GetStatus(ctx context.Context, subjectID uuid.UUID) (*Status, error) {
	now := s.now().UTC()
	out := &Status{}

	status, err := s.profiles.GetStatus(ctx, subjectID)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		return nil, s.storeFailure("get profile status", subjectID, err)
	}
	if status != nil {
		out.IsVerified = status.Verified
		out.VerifiedAt = status.VerifiedAt
	}

	pending, err := s.tokens.LatestPending(ctx, subjectID, tokencodec.PurposeEmailVerification, now)
	if err != nil {
		if errors.Is(err, tokenstore.ErrNotFound) {
			return out, nil
		}
		return nil, s.storeFailure("get pending token", subjectID, err)
	}

	out.HasValidPendingToken = true
	out.TokenExpiresAt = &pending.ExpiresAt
	remaining := pending.MaxAttempts - pending.Attempts
	if remaining < 0 {
		remaining = 0
	}
	out.AttemptsRemaining = &remaining

	return out, nil
}

func (s *Service) recordRedeemFailure(ctx context.Context, subjectID, tokenID *uuid.UUID, ip, userAgent string, cause error) {
	s.auditLog.Record(ctx, audit.Entry{
		SubjectID:      subjectID,
		Action:         audit.ActionRedeemFailed,
		IP:             ip,
		UserAgent:      userAgent,
		Success:        false,
		ErrorMessage:   errMessage(cause),
		RelatedTokenID: tokenID,
	})
}

// storeFailure wraps a backing-store error, distinguishing timeouts from
// definitive persistence failures so callers do not mistake "we don't know"
// for "definitely no".
func (s *Service) storeFailure(op string, subjectID uuid.UUID, err error) error {
	slog.Error("Verification store operation failed", "op", op, "subject_id", subjectID, "err", err)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

func mapCodecError(err error) error {
	switch {
	case errors.Is(err, tokencodec.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, tokencodec.ErrInvalidSignature):
		return ErrInvalidSignature
	case errors.Is(err, tokencodec.ErrPurposeMismatch):
		return ErrTokenNotFound
	default:
		return ErrMalformedToken
	}
}

func errMessage(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}
