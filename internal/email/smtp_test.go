package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type smtpConfig struct{ username string }

func (smtpConfig) GetEmailEnabled() bool             { return true }
func (smtpConfig) GetSMTPHost() string               { return "mail.example" }
func (smtpConfig) GetSMTPPort() int                  { return 2525 }
func (c smtpConfig) GetSMTPUsername() string         { return c.username }
func (smtpConfig) GetSMTPPassword() string           { return "secret" }
func (smtpConfig) GetEmailFromName() string          { return "SFR Ops" }
func (smtpConfig) GetEmailFromAddress() string       { return "ops@example.com" }
func (smtpConfig) GetStaffNotificationEmail() string { return "" }

func TestNewMessageCarriesRequestHeaders(t *testing.T) {
	s := NewSMTPSender(smtpConfig{})
	msg, err := s.newMessage("handler@example.com", NotificationEmail{Kind: "cancelled", RequestID: 11, Callsign: "RCH123"}, "<p>x</p>")
	require.NoError(t, err)

	assert.Equal(t, []string{"11"}, msg.GetGenHeader(HeaderRequestID))
	assert.Equal(t, []string{"cancelled"}, msg.GetGenHeader(headerKind))
	assert.Equal(t, []string{"Request RCH123 cancelled"}, msg.GetGenHeader("Subject"))

	to, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"handler@example.com"}, to)
}

func TestNewMessageRejectsBadRecipient(t *testing.T) {
	s := NewSMTPSender(smtpConfig{})
	_, err := s.newMessage("not an address", NotificationEmail{Kind: "created"}, "")
	require.Error(t, err)
}

func TestClientOptionsSkipAuthWithoutUsername(t *testing.T) {
	anon := NewSMTPSender(smtpConfig{})
	authed := NewSMTPSender(smtpConfig{username: "ops"})

	assert.Len(t, authed.clientOptions(), len(anon.clientOptions())+3)
}
