// Package audit appends immutable records of security-relevant verification
// events. Audit writes are fire-and-forget from the caller's perspective:
// a failing audit store must never prevent a legitimate verification from
// completing, so failures are logged to the process log instead.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Action enumerates the recorded event kinds.
type Action string

const (
	ActionTokenIssued     Action = "token_issued"
	ActionTokenRedeemed   Action = "token_redeemed"
	ActionRedeemFailed    Action = "redeem_failed"
	ActionTokenSuperseded Action = "token_superseded"
	ActionRateLimited     Action = "rate_limited"
	ActionLimiterFailOpen Action = "limiter_fail_open"
	ActionDeliveryFailed  Action = "delivery_failed"
	ActionSweep           Action = "sweep"
)

// Entry is one append-only audit record. SubjectID is nil for failures that
// occur before any identity is established.
type Entry struct {
	ID             uuid.UUID
	SubjectID      *uuid.UUID
	Action         Action
	Timestamp      time.Time
	IP             string
	UserAgent      string
	Success        bool
	ErrorMessage   *string
	RelatedTokenID *uuid.UUID
}

// Recorder records audit entries without surfacing store failures.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Appender is the underlying store write. Implementations may fail; the Log
// wrapper absorbs those failures.
type Appender interface {
	Append(ctx context.Context, entry Entry) error
}

// DefaultTimeout bounds how long an audit write may block the primary flow.
const DefaultTimeout = 2 * time.Second

// Log is the Recorder used in production: it writes through an Appender with
// a bounded timeout and falls back to the process log when the write fails.
type Log struct {
	appender Appender
	timeout  time.Duration
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithTimeout sets the per-write timeout.
func WithTimeout(timeout time.Duration) LogOption {
	return func(l *Log) {
		l.timeout = timeout
	}
}

// NewLog creates a Recorder writing through the given appender.
func NewLog(appender Appender, opts ...LogOption) *Log {
	l := &Log{
		appender: appender,
		timeout:  DefaultTimeout,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Record writes the entry. The write is detached from the caller's
// cancellation so an aborted request still leaves its audit trail, but it is
// bounded by the configured timeout.
func (l *Log) Record(ctx context.Context, entry Entry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	if err := l.appender.Append(writeCtx, entry); err != nil {
		slog.Error("Failed to append audit entry",
			"action", entry.Action,
			"subject_id", entry.SubjectID,
			"success", entry.Success,
			"err", err,
		)
	}
}
