package notification

import (
	"context"
	"time"
)

// VerificationMailer adapts the notification manager to the verification
// service's email sender contract.
type VerificationMailer struct {
	manager *Manager
}

// NewVerificationMailer creates a mailer over the given manager.
func NewVerificationMailer(manager *Manager) *VerificationMailer {
	return &VerificationMailer{manager: manager}
}

func (m *VerificationMailer) SendVerificationEmail(ctx context.Context, to, link string, expiresAt time.Time) error {
	return m.manager.Send(NoticeEmailVerification, NotificationData{
		To: to,
		Data: map[string]string{
			"VerificationLink": link,
			"ExpiresAt":        expiresAt.UTC().Format(time.RFC1123),
		},
	})
}
