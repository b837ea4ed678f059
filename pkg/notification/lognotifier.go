package notification

import "log/slog"

// LogNotifier writes notices to the process log instead of delivering them.
// Used by the dev binary so verification links are visible without SMTP.
type LogNotifier struct{}

func (LogNotifier) Send(notice NoticeType, data NotificationData, tmpl NoticeTemplate) error {
	slog.Info("Notice (log delivery)",
		"notice", notice,
		"to", data.To,
		"subject", tmpl.Subject,
		"data", data.Data,
	)
	return nil
}
