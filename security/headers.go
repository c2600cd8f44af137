package security

import (
	"net/http"
	"net/url"
)

// SetSecurityHeaders sets defensive headers on an OAuth endpoint response.
// Cache-Control and Pragma are only set when absent so an engine-provided
// no-store policy is kept.
func SetSecurityHeaders(h http.Header, issuer string) {
	// Prevent clickjacking of consent and error pages
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	h.Set("Referrer-Policy", "no-referrer")

	if parsed, err := url.Parse(issuer); err == nil && parsed.Scheme == "https" {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}

	if h.Get("Cache-Control") == "" {
		h.Set("Cache-Control", "no-store")
	}
	if h.Get("Pragma") == "" {
		h.Set("Pragma", "no-cache")
	}
}
