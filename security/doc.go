// Package security provides the security primitives used by the OAuth engine:
// secret hashing, constant-time comparison, expiry checks, per-client rate
// limiting and audit logging.
//
// # Secrets
//
// Client secrets and user passwords are stored as bcrypt hashes. HashSecret
// produces a hash suitable for storage.Client.SecretHash and VerifySecret
// checks a presented secret against it.
//
// # Rate Limiting
//
// RateLimiter provides per-identifier token-bucket limiting with LRU eviction
// so that memory stays bounded however many identifiers are seen. The token
// endpoint keys it by client ID and answers temporarily_unavailable once a
// client exceeds its budget.
//
//	limiter := security.NewRateLimiter(10, 20, logger)
//	defer limiter.Stop()
//
//	if !limiter.Allow(clientID) {
//	    // reject
//	}
//
// # Response Headers
//
// SetSecurityHeaders adds anti-framing, no-sniff and referrer headers to OAuth
// endpoint responses, plus HSTS when the issuer is served over HTTPS.
//
// # Audit Logging
//
// Auditor writes security_audit records through slog. User identifiers are
// hashed before they are logged; token values are never logged.
package security
