package sections

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const docPrefix = "doc://com.apple.devicemanagement/documentation/DeviceManagement"

func TestExtractConfigType(t *testing.T) {
	tests := []struct {
		name   string
		ref    string
		want   string
		wantOK bool
	}{
		{"documentation path", docPrefix + "/CalDAV", "CalDAV", true},
		{"casing preserved", docPrefix + "/GoogleAccount", "GoogleAccount", true},
		{"nested path falls back to last segment", docPrefix + "/Accounts/LDAP", "LDAP", true},
		{"fragment stripped", docPrefix + "/WiFi#discussion", "WiFi", true},
		{"trailing slash", docPrefix + "/VPN/", "VPN", true},
		{"plain relative path", "topics/MobileAccounts", "MobileAccounts", true},
		{"bare token", "SubscribedCalendars", "SubscribedCalendars", true},
		{"colon separated", "profile:Passcode", "Passcode", true},
		{"documentation marker", "doc://com.apple.devicemanagement/documentation", "", false},
		{"root namespace", "doc://com.apple.devicemanagement/documentation/DeviceManagement", "", false},
		{"bare scheme", "doc://com.apple.devicemanagement", "", false},
		{"empty", "", "", false},
		{"whitespace", "   ", "", false},
		{"punctuation only", "topics/---", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractConfigType(tt.ref)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractConfigType_NeverPanics(t *testing.T) {
	inputs := []string{"/", "//", "?", "#", ":", "doc:", "/documentation//", "\x00", "::::"}
	for _, in := range inputs {
		assert.NotPanics(t, func() { ExtractConfigType(in) }, "input %q", in)
	}
}
