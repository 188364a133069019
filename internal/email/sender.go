// Package email renders and delivers notification emails.
package email

import "context"

// Sender delivers rendered emails.
type Sender interface {
	SendNotificationEmail(ctx context.Context, toEmail string, data NotificationEmail) error
}

// NoopSender drops every email. It is used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendNotificationEmail(context.Context, string, NotificationEmail) error { return nil }
