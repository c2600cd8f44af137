package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/internal/util"
	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/storage"
)

const (
	// storageType is reported on storage spans
	storageType = "memory"

	// dummyHash is compared against when a client or user does not exist so
	// that lookups of unknown identifiers cost the same as wrong secrets.
	// bcrypt hash of "test".
	dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
)

type user struct {
	username     string
	passwordHash string
	scope        string
}

// Store is an in-memory implementation of all storage contracts.
type Store struct {
	mu sync.RWMutex

	clients       map[string]*storage.Client
	accessTokens  map[string]*storage.AccessToken
	refreshTokens map[string]*storage.RefreshToken
	authCodes     map[string]*storage.AuthorizationCode
	users         map[string]*user
	defaultScopes map[string]string // client ID -> default scope

	// Instrumentation
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// Atomic counters for metrics (lock-free access during metric collection)
	accessTokensCountAtomic  atomic.Int64
	refreshTokensCountAtomic atomic.Int64
	authCodesCountAtomic     atomic.Int64
	clientsCountAtomic       atomic.Int64

	// Cleanup
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	now             func() time.Time
	logger          *slog.Logger
}

// Compile-time interface checks to ensure Store implements all storage contracts
var (
	_ storage.ClientStore            = (*Store)(nil)
	_ storage.AccessTokenStore       = (*Store)(nil)
	_ storage.RefreshTokenStore      = (*Store)(nil)
	_ storage.AuthorizationCodeStore = (*Store)(nil)
	_ storage.UserStore              = (*Store)(nil)
	_ storage.ScopeStore             = (*Store)(nil)
)

// New creates a new in-memory store with the default cleanup interval (1 minute)
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates a new in-memory store with custom cleanup interval.
// If cleanupInterval is 0 or negative, uses default of 1 minute.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &Store{
		clients:         make(map[string]*storage.Client),
		accessTokens:    make(map[string]*storage.AccessToken),
		refreshTokens:   make(map[string]*storage.RefreshToken),
		authCodes:       make(map[string]*storage.AuthorizationCode),
		users:           make(map[string]*user),
		defaultScopes:   make(map[string]string),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
		logger:          slog.Default(),
	}

	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger != nil {
		s.logger = logger
	}
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}
	s.accessTokensCountAtomic.Store(int64(len(s.accessTokens)))
	s.refreshTokensCountAtomic.Store(int64(len(s.refreshTokens)))
	s.authCodesCountAtomic.Store(int64(len(s.authCodes)))
	s.clientsCountAtomic.Store(int64(len(s.clients)))
	s.mu.Unlock()

	if inst != nil {
		err := inst.RegisterStorageSizeCallbacks(
			func() int64 { return s.accessTokensCountAtomic.Load() },
			func() int64 { return s.refreshTokensCountAtomic.Load() },
			func() int64 { return s.authCodesCountAtomic.Load() },
			func() int64 { return s.clientsCountAtomic.Load() },
		)
		if err != nil {
			s.logger.Warn("Failed to register storage size callbacks", "error", err)
		}
	}
}

// Stop gracefully stops the cleanup goroutine. Safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

// ============================================================
// ClientStore Implementation
// ============================================================

// ClientRegistration describes a client to register with RegisterClient.
// An empty ClientSecret registers a public client.
type ClientRegistration struct {
	ClientID     string
	ClientSecret string
	ClientName   string
	RedirectURIs []string
	GrantTypes   []string
	Scopes       []string
	DefaultScope string
}

// RegisterClient hashes the secret (if any) and saves the client.
func (s *Store) RegisterClient(ctx context.Context, reg ClientRegistration) error {
	client := &storage.Client{
		ClientID:     reg.ClientID,
		ClientName:   reg.ClientName,
		RedirectURIs: append([]string(nil), reg.RedirectURIs...),
		GrantTypes:   append([]string(nil), reg.GrantTypes...),
		Scopes:       append([]string(nil), reg.Scopes...),
	}
	if reg.ClientSecret != "" {
		hash, err := security.HashSecret(reg.ClientSecret)
		if err != nil {
			return fmt.Errorf("failed to hash client secret: %w", err)
		}
		client.SecretHash = hash
	}

	if err := s.SaveClient(ctx, client); err != nil {
		return err
	}
	if reg.DefaultScope != "" {
		s.SetDefaultScope(reg.ClientID, reg.DefaultScope)
	}
	return nil
}

// SaveClient saves a registered client, replacing any client with the same ID
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) (err error) {
	ctx, span := s.startStorageSpan(ctx, "save_client")
	defer span.End()
	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "save_client", err, startTime)
	}()

	if client == nil || client.ClientID == "" {
		return fmt.Errorf("invalid client: client ID is required")
	}

	stored := *client
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, existed := s.clients[client.ClientID]; !existed {
		s.clientsCountAtomic.Add(1)
	}
	s.clients[client.ClientID] = &stored

	s.logger.Debug("Saved client", "client_id", client.ClientID, "public", stored.IsPublic())
	return nil
}

// GetClient retrieves a client by ID
func (s *Store) GetClient(ctx context.Context, clientID string) (client *storage.Client, err error) {
	ctx, span := s.startStorageSpan(ctx, "get_client")
	defer span.End()
	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "get_client", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: client %s", storage.ErrNotFound, clientID)
	}

	cp := *c
	return &cp, nil
}

// ValidateClientSecret validates a client's secret using bcrypt.
// SECURITY: a bcrypt comparison is always performed so that unknown clients
// and wrong secrets take the same time.
func (s *Store) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error {
	client, lookupErr := s.GetClient(ctx, clientID)

	hashToCompare := dummyHash
	if lookupErr == nil && !client.IsPublic() {
		hashToCompare = client.SecretHash
	}

	verifyErr := security.VerifySecret(hashToCompare, clientSecret)

	if lookupErr != nil {
		return lookupErr
	}
	if client.IsPublic() {
		// Public clients have nothing to validate against
		return storage.ErrInvalidCredentials
	}
	if verifyErr != nil {
		return storage.ErrInvalidCredentials
	}
	return nil
}

// ============================================================
// ScopeStore Implementation
// ============================================================

// SetDefaultScope sets the scope granted to a client that requests none.
// An empty scope removes the client-specific default.
func (s *Store) SetDefaultScope(clientID, scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scope == "" {
		delete(s.defaultScopes, clientID)
		return
	}
	s.defaultScopes[clientID] = scope
}

// GetDefaultScope returns the client-specific default scope, or "" if none is set
func (s *Store) GetDefaultScope(_ context.Context, clientID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultScopes[clientID], nil
}

// ============================================================
// UserStore Implementation
// ============================================================

// AddUser registers a resource owner for the password grant.
// scope optionally caps what the user may be granted.
func (s *Store) AddUser(_ context.Context, username, password, scope string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	hash, err := security.HashSecret(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = &user{username: username, passwordHash: hash, scope: scope}
	return nil
}

// AuthenticateUser checks a username and password
func (s *Store) AuthenticateUser(ctx context.Context, username, password string) (u *storage.User, err error) {
	ctx, span := s.startStorageSpan(ctx, "authenticate_user")
	defer span.End()
	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "authenticate_user", err, startTime)
	}()

	s.mu.RLock()
	found, ok := s.users[username]
	s.mu.RUnlock()

	hashToCompare := dummyHash
	if ok {
		hashToCompare = found.passwordHash
	}
	verifyErr := security.VerifySecret(hashToCompare, password)

	if !ok {
		return nil, fmt.Errorf("%w: user", storage.ErrNotFound)
	}
	if verifyErr != nil {
		return nil, storage.ErrInvalidCredentials
	}
	return &storage.User{UserID: found.username, Scope: found.scope}, nil
}

// ============================================================
// AccessTokenStore Implementation
// ============================================================

// SaveAccessToken stores an access token
func (s *Store) SaveAccessToken(ctx context.Context, token *storage.AccessToken) (err error) {
	ctx, span := s.startStorageSpan(ctx, "save_access_token")
	defer span.End()
	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "save_access_token", err, startTime)
	}()

	if token == nil || token.Token == "" {
		return fmt.Errorf("access token cannot be empty")
	}

	stored := *token
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, existed := s.accessTokens[token.Token]; !existed {
		s.accessTokensCountAtomic.Add(1)
	}
	s.accessTokens[token.Token] = &stored

	s.logger.Debug("Saved access token",
		"token_prefix", util.RedactToken(token.Token),
		"client_id", token.ClientID)
	return nil
}

// GetAccessToken retrieves an access token. Expired tokens are returned as
// long as cleanup has not removed them; callers check expiry.
func (s *Store) GetAccessToken(ctx context.Context, token string) (at *storage.AccessToken, err error) {
	ctx, span := s.startStorageSpan(ctx, "get_access_token")
	defer span.End()
	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "get_access_token", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	found, ok := s.accessTokens[token]
	if !ok {
		return nil, fmt.Errorf("%w: access token", storage.ErrNotFound)
	}
	cp := *found
	return &cp, nil
}

// ============================================================
// RefreshTokenStore Implementation
// ============================================================

// SaveRefreshToken stores a refresh token
func (s *Store) SaveRefreshToken(ctx context.Context, token *storage.RefreshToken) (err error) {
	ctx, span := s.startStorageSpan(ctx, "save_refresh_token")
	defer span.End()
	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "save_refresh_token", err, startTime)
	}()

	if token == nil || token.Token == "" {
		return fmt.Errorf("refresh token cannot be empty")
	}

	stored := *token
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, existed := s.refreshTokens[token.Token]; !existed {
		s.refreshTokensCountAtomic.Add(1)
	}
	s.refreshTokens[token.Token] = &stored

	s.logger.Debug("Saved refresh token",
		"token_prefix", util.RedactToken(token.Token),
		"client_id", token.ClientID)
	return nil
}

// GetRefreshToken retrieves a refresh token without consuming it
func (s *Store) GetRefreshToken(ctx context.Context, token string) (rt *storage.RefreshToken, err error) {
	ctx, span := s.startStorageSpan(ctx, "get_refresh_token")
	defer span.End()
	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "get_refresh_token", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	found, ok := s.refreshTokens[token]
	if !ok {
		return nil, fmt.Errorf("%w: refresh token", storage.ErrNotFound)
	}
	cp := *found
	return &cp, nil
}

// ConsumeRefreshToken atomically retrieves and deletes a refresh token.
// SECURITY: the write lock makes get-and-delete a single step, so only one
// concurrent caller receives the token.
func (s *Store) ConsumeRefreshToken(ctx context.Context, token string) (rt *storage.RefreshToken, err error) {
	ctx, span := s.startStorageSpan(ctx, "consume_refresh_token")
	defer span.End()
	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "consume_refresh_token", err, startTime)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	found, ok := s.refreshTokens[token]
	if !ok {
		return nil, fmt.Errorf("%w: refresh token", storage.ErrNotFound)
	}
	delete(s.refreshTokens, token)
	s.refreshTokensCountAtomic.Add(-1)

	s.logger.Debug("Consumed refresh token",
		"token_prefix", util.RedactToken(token))
	return found, nil
}

// ============================================================
// AuthorizationCodeStore Implementation
// ============================================================

// SaveAuthorizationCode stores an authorization code
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) (err error) {
	ctx, span := s.startStorageSpan(ctx, "save_authorization_code")
	defer span.End()
	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "save_authorization_code", err, startTime)
	}()

	if code == nil || code.Code == "" {
		return fmt.Errorf("authorization code cannot be empty")
	}

	stored := *code
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, existed := s.authCodes[code.Code]; !existed {
		s.authCodesCountAtomic.Add(1)
	}
	s.authCodes[code.Code] = &stored

	s.logger.Debug("Saved authorization code",
		"code_prefix", util.RedactToken(code.Code),
		"client_id", code.ClientID)
	return nil
}

// ConsumeAuthorizationCode atomically retrieves and deletes an authorization code.
// SECURITY: only one concurrent caller receives the code; all others get ErrNotFound.
func (s *Store) ConsumeAuthorizationCode(ctx context.Context, code string) (ac *storage.AuthorizationCode, err error) {
	ctx, span := s.startStorageSpan(ctx, "consume_authorization_code")
	defer span.End()
	startTime := time.Now()
	defer func() {
		s.recordStorageOperation(ctx, span, "consume_authorization_code", err, startTime)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	found, ok := s.authCodes[code]
	if !ok {
		return nil, fmt.Errorf("%w: authorization code", storage.ErrNotFound)
	}
	delete(s.authCodes, code)
	s.authCodesCountAtomic.Add(-1)

	s.logger.Debug("Consumed authorization code",
		"code_prefix", util.RedactToken(code))
	return found, nil
}

// ============================================================
// Cleanup
// ============================================================

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cleaned := 0

	for key, token := range s.accessTokens {
		if security.IsExpired(token.ExpiresAt, now, 0) {
			delete(s.accessTokens, key)
			s.accessTokensCountAtomic.Add(-1)
			cleaned++
		}
	}

	for key, token := range s.refreshTokens {
		if security.IsExpired(token.ExpiresAt, now, 0) {
			delete(s.refreshTokens, key)
			s.refreshTokensCountAtomic.Add(-1)
			cleaned++
		}
	}

	for key, code := range s.authCodes {
		if security.IsExpired(code.ExpiresAt, now, 0) {
			delete(s.authCodes, key)
			s.authCodesCountAtomic.Add(-1)
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.Debug("Cleaned up expired entries", "count", cleaned)
	}
}

// ============================================================
// Instrumentation Helpers
// ============================================================

// startStorageSpan starts a new span for a storage operation
// Callers must not hold s.mu.
func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	s.mu.RLock()
	tracer := s.tracer
	s.mu.RUnlock()
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := tracer.Start(ctx, "storage."+operation)
	instrumentation.AddStorageAttributes(span, operation, storageType)
	return ctx, span
}

// recordStorageOperation records metrics for a storage operation and sets span status
// Callers must not hold s.mu.
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	s.mu.RLock()
	inst := s.instrumentation
	s.mu.RUnlock()
	if inst == nil {
		return
	}

	durationMs := float64(time.Since(startTime).Microseconds()) / 1000
	result := instrumentation.ResultSuccess
	if err != nil {
		result = "error"
		instrumentation.RecordError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}

	inst.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
}
