package server

import (
	"log/slog"
	"time"
)

// Config holds the engine configuration. It is read once by New and never
// mutated afterwards.
type Config struct {
	// AccessTokenTTL is how long access tokens are valid
	AccessTokenTTL int64 // seconds, default: 3600 (1 hour)

	// RefreshTokenTTL is how long refresh tokens are valid
	RefreshTokenTTL int64 // seconds, default: 1209600 (14 days)

	// AuthorizationCodeTTL is how long authorization codes are valid
	AuthorizationCodeTTL int64 // seconds, default: 30

	// ClockSkewGracePeriod extends every expiry check to tolerate clock drift
	// between the engine and its storage
	ClockSkewGracePeriod int64 // seconds, default: 0

	// GrantTypes lists the grant types accepted at the token endpoint.
	// Empty enables every built-in grant whose storage is configured.
	// Listing GrantTypeImplicit registers the stub that always rejects.
	GrantTypes []GrantTypeID

	// EnforceRedirect requires redirect_uri on every authorization request,
	// even when the client registered a single URI
	EnforceRedirect bool

	// EnforceState requires the state parameter on every authorization request
	EnforceState bool

	// AllowImplicit enables response_type=token at the authorize endpoint
	AllowImplicit bool

	// AllowRedirectURIPrefixMatch accepts a redirect_uri that starts with a
	// registered URI instead of requiring an exact match
	// WARNING: prefix matching widens the set of URIs codes can be sent to
	AllowRedirectURIPrefixMatch bool

	// AlwaysIssueNewRefreshToken rotates refresh tokens: every refresh_token
	// grant consumes the presented token and issues a new one
	AlwaysIssueNewRefreshToken bool

	// DisallowPublicClients rejects clients without a secret at the token endpoint
	DisallowPublicClients bool

	// DisallowCredentialsInRequestBody rejects client_secret in the request body,
	// leaving HTTP Basic as the only way to authenticate
	DisallowCredentialsInRequestBody bool

	// DefaultScope is granted when a request names no scope and the client
	// has no default of its own
	DefaultScope string

	// SupportedScopes lists every scope the server understands.
	// If empty, all scopes are allowed
	SupportedScopes []string

	// WWWRealm is the realm reported in WWW-Authenticate challenges
	WWWRealm string // default: "Service"

	// TokenParamName enables reading the access token from a query or form
	// parameter of this name in addition to the Authorization header.
	// WARNING: tokens in URLs leak through logs and referrers (RFC 6750 section 5.3)
	TokenParamName string // default: "" (header only)

	// ClientRateLimit is the sustained number of token requests per second a
	// single client may make. 0 disables rate limiting
	ClientRateLimit float64

	// ClientRateLimitBurst is the burst size for ClientRateLimit
	ClientRateLimitBurst int // default: 10 when ClientRateLimit is set
}

const (
	defaultAccessTokenTTL       = 3600
	defaultRefreshTokenTTL      = 1209600
	defaultAuthorizationCodeTTL = 30
	defaultWWWRealm             = "Service"
	defaultClientRateLimitBurst = 10
)

// applyDefaults returns a copy of config with zero values replaced by defaults
// and logs warnings for settings that weaken security
func applyDefaults(config *Config, logger *slog.Logger) *Config {
	cfg := &Config{}
	if config != nil {
		*cfg = *config
		cfg.GrantTypes = append([]GrantTypeID(nil), config.GrantTypes...)
		cfg.SupportedScopes = append([]string(nil), config.SupportedScopes...)
	}

	applyTimeDefaults(cfg)

	if cfg.WWWRealm == "" {
		cfg.WWWRealm = defaultWWWRealm
	}
	if cfg.ClientRateLimit > 0 && cfg.ClientRateLimitBurst <= 0 {
		cfg.ClientRateLimitBurst = defaultClientRateLimitBurst
	}

	logSecurityWarnings(cfg, logger)

	return cfg
}

// applyTimeDefaults sets default values for time-based configuration
func applyTimeDefaults(config *Config) {
	if config.AccessTokenTTL <= 0 {
		config.AccessTokenTTL = defaultAccessTokenTTL
	}
	if config.RefreshTokenTTL <= 0 {
		config.RefreshTokenTTL = defaultRefreshTokenTTL
	}
	if config.AuthorizationCodeTTL <= 0 {
		config.AuthorizationCodeTTL = defaultAuthorizationCodeTTL
	}
	if config.ClockSkewGracePeriod < 0 {
		config.ClockSkewGracePeriod = 0
	}
}

// logSecurityWarnings logs warnings for insecure configuration settings
func logSecurityWarnings(config *Config, logger *slog.Logger) {
	if config.AllowImplicit {
		logger.Warn("SECURITY WARNING: implicit grant is ENABLED",
			"risk", "Access tokens delivered in URL fragments can leak through browser history",
			"recommendation", "Use the authorization code grant instead")
	}
	if config.AllowRedirectURIPrefixMatch {
		logger.Warn("SECURITY WARNING: redirect URI prefix matching is ENABLED",
			"risk", "Codes and tokens may be delivered to URIs that were never registered",
			"recommendation", "Register exact redirect URIs and disable AllowRedirectURIPrefixMatch")
	}
	if config.TokenParamName != "" {
		logger.Warn("SECURITY WARNING: access tokens accepted as request parameters",
			"param", config.TokenParamName,
			"risk", "Tokens in URLs leak through logs and Referer headers",
			"learn_more", "https://datatracker.ietf.org/doc/html/rfc6750#section-5.3")
	}
	if config.AuthorizationCodeTTL > 600 {
		logger.Warn("SECURITY WARNING: authorization code lifetime exceeds 10 minutes",
			"ttl_seconds", config.AuthorizationCodeTTL,
			"learn_more", "https://datatracker.ietf.org/doc/html/rfc6749#section-4.1.2")
	}
}

func (c *Config) accessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTL) * time.Second
}

func (c *Config) refreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTL) * time.Second
}

func (c *Config) authorizationCodeTTL() time.Duration {
	return time.Duration(c.AuthorizationCodeTTL) * time.Second
}

func (c *Config) gracePeriod() time.Duration {
	return time.Duration(c.ClockSkewGracePeriod) * time.Second
}
