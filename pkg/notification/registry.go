package notification

import "fmt"

const verificationTextTemplate = `Hi,

Please confirm your email address to unlock resume optimization.

Open this link to verify: {{.VerificationLink}}

The link expires at {{.ExpiresAt}}. If you did not request this email you can ignore it.
`

const verificationHtmlTemplate = `<p>Hi,</p>
<p>Please confirm your email address to unlock resume optimization.</p>
<p><a href="{{.VerificationLink}}">Verify your email</a></p>
<p>The link expires at {{.ExpiresAt}}. If you did not request this email you can ignore it.</p>
`

// DefaultTemplates returns the built-in notice templates.
func DefaultTemplates() map[NoticeType]NoticeTemplate {
	return map[NoticeType]NoticeTemplate{
		NoticeEmailVerification: {
			Subject: "Verify your email address",
			Text:    verificationTextTemplate,
			Html:    verificationHtmlTemplate,
		},
	}
}

// Manager routes notices to a registered notifier with a registered template.
type Manager struct {
	notifier  Notifier
	templates map[NoticeType]NoticeTemplate
}

// NewManager creates a manager with the default templates.
func NewManager(notifier Notifier) *Manager {
	return &Manager{
		notifier:  notifier,
		templates: DefaultTemplates(),
	}
}

// RegisterTemplate adds or replaces the template for a notice type.
func (m *Manager) RegisterTemplate(notice NoticeType, tmpl NoticeTemplate) error {
	if notice == "" {
		return fmt.Errorf("invalid input: notice type cannot be empty")
	}
	m.templates[notice] = tmpl
	return nil
}

// Send renders and delivers the notice.
func (m *Manager) Send(notice NoticeType, data NotificationData) error {
	tmpl, exists := m.templates[notice]
	if !exists {
		return fmt.Errorf("no template registered for notice type: %s", notice)
	}

	return m.notifier.Send(notice, data, tmpl)
}
