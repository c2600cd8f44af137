// Package memory provides an in-memory implementation of the engine's storage contracts.
//
// This package implements ClientStore, AccessTokenStore, RefreshTokenStore,
// AuthorizationCodeStore, UserStore and ScopeStore using Go maps guarded by a
// single sync.RWMutex. Consume operations take the write lock, so exactly one
// of several concurrent callers presenting the same code or refresh token
// succeeds. It is suitable for development, testing and single-instance
// embedding where persistence is not required.
//
// Features:
//   - Thread-safe operations using sync.RWMutex
//   - Automatic cleanup of expired tokens and codes
//   - bcrypt hashing for client secrets and user passwords
//   - OpenTelemetry spans and storage metrics via SetInstrumentation
//
// Example usage:
//
//	store := memory.New()
//	defer store.Stop()
//
//	_ = store.RegisterClient(ctx, memory.ClientRegistration{
//		ClientID:     "web-app",
//		ClientSecret: "s3cret",
//		RedirectURIs: []string{"https://app.example.com/cb"},
//	})
package memory
