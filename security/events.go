package security

// Event type constants for security audit logging.
const (
	// EventTokenIssued is logged when an access token is issued at the token endpoint
	EventTokenIssued = "token_issued"

	// EventImplicitTokenIssued is logged when an access token is issued from the authorize endpoint
	EventImplicitTokenIssued = "implicit_token_issued" //nolint:gosec // G101: event name, not a credential

	// EventTokenRefreshed is logged when a refresh token is exchanged
	EventTokenRefreshed = "token_refreshed"

	// EventAuthorizationCodeIssued is logged when an authorization code is issued
	EventAuthorizationCodeIssued = "authorization_code_issued"

	// EventAuthorizationDenied is logged when the resource owner denies a request
	EventAuthorizationDenied = "authorization_denied"

	// EventAuthFailure is logged when client or user authentication fails
	EventAuthFailure = "auth_failure"

	// EventInvalidGrant is logged when a grant (code, refresh token, password) is rejected
	EventInvalidGrant = "invalid_grant"

	// EventRedirectURIMismatch is logged when an authorize request names an unregistered redirect URI
	EventRedirectURIMismatch = "redirect_uri_mismatch"

	// EventRateLimitExceeded is logged when a client exceeds its token endpoint budget
	EventRateLimitExceeded = "rate_limit_exceeded"
)
