package security

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetSecurityHeaders(t *testing.T) {
	tests := []struct {
		name     string
		issuer   string
		wantHSTS bool
	}{
		{name: "HTTPS issuer", issuer: "https://auth.example.com", wantHSTS: true},
		{name: "HTTP issuer", issuer: "http://localhost:8080"},
		{name: "no issuer"},
		{name: "invalid URL", issuer: "://invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			SetSecurityHeaders(h, tt.issuer)

			assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
			assert.Equal(t, "no-referrer", h.Get("Referrer-Policy"))
			assert.Contains(t, h.Get("Content-Security-Policy"), "frame-ancestors 'none'")
			assert.Equal(t, "no-store", h.Get("Cache-Control"))
			assert.Equal(t, "no-cache", h.Get("Pragma"))
			assert.Equal(t, tt.wantHSTS, h.Get("Strict-Transport-Security") != "")
		})
	}
}

func TestSetSecurityHeaders_KeepsCachePolicy(t *testing.T) {
	h := http.Header{}
	h.Set("Cache-Control", "private, max-age=60")

	SetSecurityHeaders(h, "")

	assert.Equal(t, "private, max-age=60", h.Get("Cache-Control"))
}
