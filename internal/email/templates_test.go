package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderNotificationStrikesRemovedServices(t *testing.T) {
	html, err := RenderNotification(NotificationEmail{
		Kind:      "amendment",
		RequestID: 11,
		Callsign:  "RCH123",
		Fields:    []FieldRow{{Label: "Tail number", Old: "06-6154", New: "06-6155"}},
		Services: []ServiceRow{
			{Name: "Catering", Direction: "arrival", Change: "removed", Old: "12 meals"},
			{Name: "GPU", Direction: "departure", Change: "added"},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, html, "Request RCH123 amended")
	assert.Contains(t, html, "<s>Catering (arrival) 12 meals</s>")
	assert.Contains(t, html, "GPU (departure): added")
	assert.Contains(t, html, "06-6155")
}

func TestRenderNotificationEscapesValues(t *testing.T) {
	html, err := RenderNotification(NotificationEmail{
		Kind:     "created",
		Callsign: "<script>",
	})
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestSubjectPerKind(t *testing.T) {
	n := NotificationEmail{Callsign: "RCH1", NewStatus: "Confirmed"}
	cases := map[string]string{
		"created":                    "New servicing request RCH1",
		"cancelled":                  "Request RCH1 cancelled",
		"status_changed":             "Request RCH1 is now Confirmed",
		"gh_reconfirmation_required": "Re-confirmation required: RCH1",
		"amendment":                  "Request RCH1 amended",
	}
	for kind, want := range cases {
		n.Kind = kind
		assert.Equal(t, want, n.Subject(), kind)
	}
}
