// Package notification delivers outbound notices. The verification core only
// needs the email-verification notice over SMTP, but the manager/registry
// shape leaves room for other notice kinds and delivery systems.
package notification

// NoticeType identifies a registered notice (e.g. "email_verification").
type NoticeType string

const (
	NoticeEmailVerification NoticeType = "email_verification"
)

// NotificationData carries the recipient and template data for one notice.
type NotificationData struct {
	To   string
	Data map[string]string
}

// NoticeTemplate holds the renderable parts of a notice.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// Notifier sends a rendered notice through one delivery system.
type Notifier interface {
	Send(notice NoticeType, data NotificationData, tmpl NoticeTemplate) error
}
