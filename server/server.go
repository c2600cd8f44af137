package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/scope"
	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/storage"
)

// Storage bundles the storage contracts the engine depends on.
// Clients and AccessTokens are required; the others enable the grants and
// response types that need them.
type Storage struct {
	Clients            storage.ClientStore
	AccessTokens       storage.AccessTokenStore
	RefreshTokens      storage.RefreshTokenStore
	AuthorizationCodes storage.AuthorizationCodeStore
	Users              storage.UserStore
	Scopes             storage.ScopeStore
}

// Server holds the three protocol engines, built once by New and safe for
// concurrent use.
type Server struct {
	Token     *TokenController
	Authorize *AuthorizeController
	Resource  *ResourceController

	engine *engine
}

// engine is the immutable state shared by the controllers
type engine struct {
	config *Config
	stores Storage
	scopes *scope.Checker

	grantTypes    map[GrantTypeID]GrantType
	responseTypes map[ResponseTypeID]ResponseType
	accessTokens  *AccessTokenResponseType
	refreshIssued bool

	logger          *slog.Logger
	auditor         *security.Auditor
	rateLimiter     *security.RateLimiter
	ownsRateLimiter bool
	tracer          trace.Tracer
	metrics         *instrumentation.Metrics
	now             func() time.Time
}

// Option customizes New
type Option func(*options)

type options struct {
	auditor         *security.Auditor
	rateLimiter     *security.RateLimiter
	instrumentation *instrumentation.Instrumentation
	now             func() time.Time
	generate        func() string
	grantTypes      []GrantType
	responseTypes   []ResponseType
}

// WithAuditor enables security audit logging
func WithAuditor(auditor *security.Auditor) Option {
	return func(o *options) { o.auditor = auditor }
}

// WithRateLimiter sets the per-client token endpoint rate limiter,
// overriding Config.ClientRateLimit. The caller owns and stops it.
func WithRateLimiter(rl *security.RateLimiter) Option {
	return func(o *options) { o.rateLimiter = rl }
}

// WithInstrumentation enables OpenTelemetry spans and metrics
func WithInstrumentation(inst *instrumentation.Instrumentation) Option {
	return func(o *options) { o.instrumentation = inst }
}

// WithClock replaces time.Now for expiry calculations
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithTokenGenerator replaces the random generator for tokens and codes.
// Generated values must be unguessable and never repeat.
func WithTokenGenerator(generate func() string) Option {
	return func(o *options) { o.generate = generate }
}

// WithGrantType registers an additional grant type, replacing any built-in
// grant with the same ID. Extension grants (RFC 6749 section 4.5) use this.
func WithGrantType(gt GrantType) Option {
	return func(o *options) { o.grantTypes = append(o.grantTypes, gt) }
}

// WithResponseType registers an additional response type, replacing any
// built-in response type with the same ID.
func WithResponseType(rt ResponseType) Option {
	return func(o *options) { o.responseTypes = append(o.responseTypes, rt) }
}

// New builds the token, authorize and resource engines
func New(stores Storage, config *Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if stores.Clients == nil {
		return nil, fmt.Errorf("client store is required")
	}
	if stores.AccessTokens == nil {
		return nil, fmt.Errorf("access token store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	cfg := applyDefaults(config, logger)

	inst := o.instrumentation
	if inst == nil {
		var err error
		inst, err = instrumentation.New(instrumentation.Config{Enabled: false})
		if err != nil {
			return nil, fmt.Errorf("failed to create instrumentation: %w", err)
		}
	}

	e := &engine{
		config:      cfg,
		stores:      stores,
		scopes:      scope.NewChecker(cfg.SupportedScopes, cfg.DefaultScope, stores.Scopes),
		logger:      logger,
		auditor:     o.auditor,
		rateLimiter: o.rateLimiter,
		tracer:      inst.Tracer("server"),
		metrics:     inst.Metrics(),
		now:         o.now,
	}

	if e.rateLimiter == nil && cfg.ClientRateLimit > 0 {
		e.rateLimiter = security.NewRateLimiter(cfg.ClientRateLimit, cfg.ClientRateLimitBurst, logger)
		e.ownsRateLimiter = true
	}

	e.accessTokens = NewAccessTokenResponseType(stores.AccessTokens, stores.RefreshTokens, cfg.accessTokenTTL(), cfg.refreshTokenTTL())
	e.accessTokens.now = o.now
	if o.generate != nil {
		e.accessTokens.generate = o.generate
	}

	grantTypes, err := buildGrantTypes(stores, cfg, logger, o)
	if err != nil {
		e.stop()
		return nil, err
	}
	e.grantTypes = grantTypes
	_, refreshEnabled := grantTypes[GrantTypeRefreshToken]
	e.refreshIssued = refreshEnabled && stores.RefreshTokens != nil

	e.responseTypes = buildResponseTypes(stores, cfg, e.accessTokens, o)

	enabled := make([]string, 0, len(grantTypes))
	for id := range grantTypes {
		enabled = append(enabled, string(id))
	}
	logger.Debug("OAuth engine configured",
		"grant_types", enabled,
		"response_types", len(e.responseTypes),
		"access_token_ttl", cfg.AccessTokenTTL,
		"refresh_tokens", e.refreshIssued)

	return &Server{
		Token:     &TokenController{engine: e},
		Authorize: &AuthorizeController{engine: e},
		Resource:  &ResourceController{engine: e},
		engine:    e,
	}, nil
}

// Stop releases background resources owned by the engine
func (s *Server) Stop() {
	s.engine.stop()
}

// Config returns a copy of the effective configuration after defaults
func (s *Server) Config() Config {
	return *s.engine.config
}

// GrantTypes returns the enabled token endpoint grant types
func (s *Server) GrantTypes() []GrantTypeID {
	ids := make([]GrantTypeID, 0, len(s.engine.grantTypes))
	for id := range s.engine.grantTypes {
		ids = append(ids, id)
	}
	return ids
}

// ResponseTypes returns the enabled authorize endpoint response types
func (s *Server) ResponseTypes() []ResponseTypeID {
	ids := make([]ResponseTypeID, 0, len(s.engine.responseTypes))
	for id := range s.engine.responseTypes {
		ids = append(ids, id)
	}
	return ids
}

func (e *engine) stop() {
	if e.ownsRateLimiter && e.rateLimiter != nil {
		e.rateLimiter.Stop()
	}
}

func buildGrantTypes(stores Storage, cfg *Config, logger *slog.Logger, o *options) (map[GrantTypeID]GrantType, error) {
	ids := cfg.GrantTypes
	if len(ids) == 0 {
		ids = []GrantTypeID{GrantTypeClientCredentials}
		if stores.AuthorizationCodes != nil {
			ids = append(ids, GrantTypeAuthorizationCode)
		}
		if stores.RefreshTokens != nil {
			ids = append(ids, GrantTypeRefreshToken)
		}
		if stores.Users != nil {
			ids = append(ids, GrantTypePassword)
		}
	}

	custom := make(map[GrantTypeID]GrantType, len(o.grantTypes))
	for _, gt := range o.grantTypes {
		custom[gt.ID()] = gt
	}

	grace := cfg.gracePeriod()
	grants := make(map[GrantTypeID]GrantType, len(ids)+len(custom))
	for _, id := range ids {
		if _, ok := custom[id]; ok {
			continue
		}
		switch id {
		case GrantTypeAuthorizationCode:
			if stores.AuthorizationCodes == nil {
				return nil, fmt.Errorf("grant type %q requires an authorization code store", id)
			}
			g := NewAuthorizationCodeGrant(stores.AuthorizationCodes, grace)
			g.now = o.now
			grants[id] = g
		case GrantTypeClientCredentials:
			grants[id] = NewClientCredentialsGrant()
		case GrantTypeRefreshToken:
			if stores.RefreshTokens == nil {
				return nil, fmt.Errorf("grant type %q requires a refresh token store", id)
			}
			g := NewRefreshTokenGrant(stores.RefreshTokens, cfg.AlwaysIssueNewRefreshToken, grace)
			g.now = o.now
			grants[id] = g
		case GrantTypePassword:
			if stores.Users == nil {
				return nil, fmt.Errorf("grant type %q requires a user store", id)
			}
			grants[id] = NewUserCredentialsGrant(stores.Users, logger)
		case GrantTypeImplicit:
			grants[id] = NewImplicitGrant()
		default:
			return nil, fmt.Errorf("unknown grant type %q: register it with WithGrantType", id)
		}
	}

	for id, gt := range custom {
		grants[id] = gt
	}

	return grants, nil
}

func buildResponseTypes(stores Storage, cfg *Config, tokens *AccessTokenResponseType, o *options) map[ResponseTypeID]ResponseType {
	types := make(map[ResponseTypeID]ResponseType, 2+len(o.responseTypes))

	if stores.AuthorizationCodes != nil {
		rt := NewAuthorizationCodeResponseType(stores.AuthorizationCodes, cfg.authorizationCodeTTL())
		rt.now = o.now
		if o.generate != nil {
			rt.generate = o.generate
		}
		types[ResponseTypeCode] = rt
	}
	if cfg.AllowImplicit {
		types[ResponseTypeToken] = tokens
	}

	for _, rt := range o.responseTypes {
		types[rt.ID()] = rt
	}

	return types
}

// protocolError separates expected protocol violations from collaborator
// failures. Collaborator failures are logged and replaced by a generic
// server_error so no internal detail reaches the client.
func (e *engine) protocolError(ctx context.Context, operation string, err error) *Error {
	var oauthErr *Error
	if errors.As(err, &oauthErr) {
		return oauthErr
	}

	e.logger.ErrorContext(ctx, "OAuth engine collaborator failure",
		"operation", operation,
		"error", err)
	return ErrServerError()
}

// startSpan starts a span for an engine entry point
func (e *engine) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name)
}

// finishSpan records the response outcome on the span
func finishSpan(span trace.Span, resp *Response) {
	if resp != nil {
		instrumentation.AddOutcomeAttributes(span, resp.StatusCode, resp.ErrorCode())
	}
}

// resultOf returns the metric result label for a response
func resultOf(resp *Response) string {
	if resp == nil {
		return instrumentation.ResultSuccess
	}
	if code := resp.ErrorCode(); code != "" {
		return code
	}
	return instrumentation.ResultSuccess
}
