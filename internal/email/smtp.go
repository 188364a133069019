package email

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"sfr_ops_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

const (
	smtpTimeout = 15 * time.Second

	// HeaderRequestID lets mail filters thread every notification of one request.
	HeaderRequestID gomail.Header = "X-SFR-Request"
	headerKind      gomail.Header = "X-SFR-Notification"
)

// SMTPSender delivers notifications over SMTP. A fresh connection is dialled
// per message because the worker sends in bursts minutes apart.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender reads the SMTP settings from cfg.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (s *SMTPSender) SendNotificationEmail(ctx context.Context, toEmail string, data NotificationEmail) error {
	content, err := RenderNotification(data)
	if err != nil {
		return err
	}
	msg, err := s.newMessage(toEmail, data, content)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(s.host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", toEmail, err)
	}
	return nil
}

func (s *SMTPSender) newMessage(toEmail string, data NotificationEmail, htmlContent string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(data.Subject())
	msg.SetMessageID()
	msg.SetGenHeader(HeaderRequestID, strconv.FormatInt(data.RequestID, 10))
	msg.SetGenHeader(headerKind, data.Kind)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)
	return msg, nil
}

// clientOptions skips authentication when no username is configured, which
// is how local mail catchers are run.
func (s *SMTPSender) clientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(smtpTimeout),
		gomail.WithDialContextFunc(func(ctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}
	return opts
}
