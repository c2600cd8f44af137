package oauth

import (
	"log/slog"

	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/server"
)

// Config holds the configuration for New.
// Structured using composition: protocol behavior lives in Engine, the HTTP
// surface in HTTP and cross-cutting concerns in their own sections.
type Config struct {
	// Engine is the protocol configuration (TTLs, enabled grants, scope and
	// redirect policy). Zero values take the engine defaults.
	Engine server.Config

	// Storage holds the storage backends. When Storage.Clients is nil an
	// in-memory store backs every contract; it is stopped by Shutdown.
	Storage server.Storage

	// HTTP configures the net/http adapters
	HTTP HTTPConfig

	// Security settings
	Security SecurityConfig

	// Instrumentation configures OpenTelemetry metrics and tracing.
	// Disabled by default.
	Instrumentation instrumentation.Config

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger
}

// HTTPConfig holds settings for the net/http adapters
type HTTPConfig struct {
	// Issuer is the authorization server's base URL (RFC 8414).
	// Required to serve metadata; also enables HSTS when it is https.
	Issuer string

	// AuthorizePath is the path of the authorization endpoint
	AuthorizePath string // default: "/oauth/authorize"

	// TokenPath is the path of the token endpoint
	TokenPath string // default: "/oauth/token"

	// MaxRequestBodySize caps form bodies read by the adapters, in bytes
	MaxRequestBodySize int64 // default: 1 MiB
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	// EnableAuditLogging enables security audit logging.
	// Logs auth events and token operations (user identifiers hashed, tokens never logged).
	EnableAuditLogging bool

	// DisableSecurityHeaders stops the adapters from adding X-Frame-Options,
	// Content-Security-Policy and related headers. Use when a proxy sets them.
	DisableSecurityHeaders bool
}

const (
	defaultAuthorizePath      = "/oauth/authorize"
	defaultTokenPath          = "/oauth/token"
	defaultMaxRequestBodySize = 1 << 20
	metadataPath              = "/.well-known/oauth-authorization-server"
)

// applyHTTPDefaults fills zero HTTP settings with defaults
func applyHTTPDefaults(cfg HTTPConfig) HTTPConfig {
	if cfg.AuthorizePath == "" {
		cfg.AuthorizePath = defaultAuthorizePath
	}
	if cfg.TokenPath == "" {
		cfg.TokenPath = defaultTokenPath
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	return cfg
}
