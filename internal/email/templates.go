package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
}

// FieldRow is one changed value.
type FieldRow struct {
	Label string
	Old   string
	New   string
}

// ServiceRow is one changed service. Removed rows render struck through.
type ServiceRow struct {
	Name      string
	Direction string
	Change    string
	Old       string
	New       string
}

// Removed reports whether the row describes a removed service.
func (r ServiceRow) Removed() bool { return r.Change == "removed" }

// NotificationEmail is the content of a request notification.
type NotificationEmail struct {
	Kind      string
	RequestID int64
	Callsign  string
	OldStatus string
	NewStatus string
	Fields    []FieldRow
	Services  []ServiceRow
}

// Subject returns the subject line for the notification kind.
func (n NotificationEmail) Subject() string {
	switch n.Kind {
	case "created":
		return fmt.Sprintf(subjectCreatedFmt, n.Callsign)
	case "cancelled":
		return fmt.Sprintf(subjectCancelledFmt, n.Callsign)
	case "status_changed":
		return fmt.Sprintf(subjectStatusChangedFmt, n.Callsign, n.NewStatus)
	case "gh_reconfirmation_required":
		return fmt.Sprintf(subjectReconfirmationFmt, n.Callsign)
	default:
		return fmt.Sprintf(subjectAmendmentFmt, n.Callsign)
	}
}

type notificationEmailData struct {
	baseEmailData
	NotificationEmail
}

// RenderNotification renders n with the shared layout.
func RenderNotification(n NotificationEmail) (string, error) {
	return renderEmailTemplate("sfr_notification.html", notificationEmailData{
		baseEmailData: baseEmailData{
			Title:      n.Subject(),
			Heading:    n.Subject(),
			Subheading: fmt.Sprintf("Request #%d", n.RequestID),
		},
		NotificationEmail: n,
	})
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}
