package security

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedAuditor(enabled bool) (*Auditor, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return NewAuditor(logger, enabled), &buf
}

func TestNewAuditor(t *testing.T) {
	tests := []struct {
		name    string
		logger  *slog.Logger
		enabled bool
	}{
		{name: "enabled with logger", logger: slog.Default(), enabled: true},
		{name: "disabled with logger", logger: slog.Default(), enabled: false},
		{name: "enabled with nil logger", logger: nil, enabled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := NewAuditor(tt.logger, tt.enabled)
			require.NotNil(t, auditor)
			assert.Equal(t, tt.enabled, auditor.enabled)
			assert.NotNil(t, auditor.logger)
		})
	}
}

func TestAuditor_LogEvent(t *testing.T) {
	auditor, buf := newBufferedAuditor(true)

	auditor.LogEvent(Event{
		Type:     "test_event",
		UserID:   "user-123",
		ClientID: "client-456",
		Details:  map[string]any{"key": "value"},
	})

	out := buf.String()
	assert.Contains(t, out, "security_audit")
	assert.Contains(t, out, "test_event")
	assert.Contains(t, out, "client-456")
	assert.NotContains(t, out, "user-123", "user IDs must be hashed")
}

func TestAuditor_Disabled(t *testing.T) {
	auditor, buf := newBufferedAuditor(false)

	auditor.LogTokenIssued("user", "client", "password", "read", true)

	assert.Zero(t, buf.Len())
}

func TestAuditor_NilIsNoop(t *testing.T) {
	var auditor *Auditor
	assert.NotPanics(t, func() {
		auditor.LogAuthFailure("user", "client", "reason")
	})
}

func TestAuditor_Helpers(t *testing.T) {
	tests := []struct {
		name      string
		log       func(a *Auditor)
		wantEvent string
	}{
		{
			name:      "token issued",
			log:       func(a *Auditor) { a.LogTokenIssued("u", "c", "client_credentials", "read", false) },
			wantEvent: EventTokenIssued,
		},
		{
			name:      "token refreshed",
			log:       func(a *Auditor) { a.LogTokenRefreshed("u", "c", true) },
			wantEvent: EventTokenRefreshed,
		},
		{
			name:      "auth failure",
			log:       func(a *Auditor) { a.LogAuthFailure("", "c", "invalid_client_secret") },
			wantEvent: EventAuthFailure,
		},
		{
			name:      "invalid grant",
			log:       func(a *Auditor) { a.LogInvalidGrant("c", "authorization_code", "redirect_uri_mismatch") },
			wantEvent: EventInvalidGrant,
		},
		{
			name:      "code issued",
			log:       func(a *Auditor) { a.LogAuthorizationCodeIssued("u", "c", "read") },
			wantEvent: EventAuthorizationCodeIssued,
		},
		{
			name:      "implicit token issued",
			log:       func(a *Auditor) { a.LogImplicitTokenIssued("u", "c", "read") },
			wantEvent: EventImplicitTokenIssued,
		},
		{
			name:      "authorization denied",
			log:       func(a *Auditor) { a.LogAuthorizationDenied("u", "c") },
			wantEvent: EventAuthorizationDenied,
		},
		{
			name:      "redirect mismatch",
			log:       func(a *Auditor) { a.LogRedirectURIMismatch("c", "evil.example.com") },
			wantEvent: EventRedirectURIMismatch,
		},
		{
			name:      "rate limit",
			log:       func(a *Auditor) { a.LogRateLimitExceeded("c") },
			wantEvent: EventRateLimitExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor, buf := newBufferedAuditor(true)
			tt.log(auditor)
			assert.True(t, strings.Contains(buf.String(), tt.wantEvent), "log output: %s", buf.String())
		})
	}
}

func TestHashForLogging(t *testing.T) {
	assert.Equal(t, "<empty>", hashForLogging(""))
	h := hashForLogging("user-123")
	assert.Len(t, h, 16)
	assert.Equal(t, h, hashForLogging("user-123"))
	assert.NotEqual(t, h, hashForLogging("user-124"))
}
