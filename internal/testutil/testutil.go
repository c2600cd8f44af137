package testutil

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/giantswarm/oauth2-engine/storage"
	"github.com/giantswarm/oauth2-engine/storage/memory"
)

// Well-known fixture identifiers registered by NewStore
const (
	// ConfidentialClientID may use every grant and owns RedirectURI
	ConfidentialClientID     = "confidential-client"
	ConfidentialClientSecret = "confidential-secret"

	// PublicClientID has no secret and owns RedirectURI
	PublicClientID = "public-client"

	// RestrictedClientID may only use client_credentials and the "read" scope
	RestrictedClientID     = "restricted-client"
	RestrictedClientSecret = "restricted-secret"

	// MultiRedirectClientID registers RedirectURI and AltRedirectURI
	MultiRedirectClientID     = "multi-redirect-client"
	MultiRedirectClientSecret = "multi-redirect-secret"

	RedirectURI    = "https://app.example.com/cb"
	AltRedirectURI = "https://app.example.com/alt"

	TestUsername = "alice"
	TestPassword = "wonderland"
	TestUserID   = TestUsername

	// CappedUsername may only be granted the "read" scope
	CappedUsername = "bob"
	CappedPassword = "builder"
)

// MockTime provides a controllable, goroutine-safe time source for deterministic testing
type MockTime struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockTime creates a new mock time provider
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time
func (m *MockTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the mock time forward by the given duration
func (m *MockTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set sets the mock time to a specific value
func (m *MockTime) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// NewStore returns an in-memory store populated with the fixture clients and
// users. The store is stopped when the test ends.
func NewStore(t testing.TB) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	t.Cleanup(store.Stop)

	registrations := []memory.ClientRegistration{
		{
			ClientID:     ConfidentialClientID,
			ClientSecret: ConfidentialClientSecret,
			RedirectURIs: []string{RedirectURI},
		},
		{
			ClientID:     PublicClientID,
			RedirectURIs: []string{RedirectURI},
		},
		{
			ClientID:     RestrictedClientID,
			ClientSecret: RestrictedClientSecret,
			RedirectURIs: []string{RedirectURI},
			GrantTypes:   []string{"client_credentials"},
			Scopes:       []string{"read"},
		},
		{
			ClientID:     MultiRedirectClientID,
			ClientSecret: MultiRedirectClientSecret,
			RedirectURIs: []string{RedirectURI, AltRedirectURI},
		},
	}
	for _, reg := range registrations {
		if err := store.RegisterClient(ctx, reg); err != nil {
			t.Fatalf("failed to register client %s: %v", reg.ClientID, err)
		}
	}

	if err := store.AddUser(ctx, TestUsername, TestPassword, ""); err != nil {
		t.Fatalf("failed to add user: %v", err)
	}
	if err := store.AddUser(ctx, CappedUsername, CappedPassword, "read"); err != nil {
		t.Fatalf("failed to add user: %v", err)
	}

	return store
}

// SaveAccessToken stores an access token fixture and returns its value
func SaveAccessToken(t testing.TB, store storage.AccessTokenStore, clientID, userID, scope string, expiresAt time.Time) string {
	t.Helper()
	token := GenerateRandomString(32)
	err := store.SaveAccessToken(context.Background(), &storage.AccessToken{
		Token:     token,
		ClientID:  clientID,
		UserID:    userID,
		Scope:     scope,
		ExpiresAt: expiresAt,
		CreatedAt: expiresAt.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("failed to save access token: %v", err)
	}
	return token
}

// BasicAuth returns an "Authorization: Basic" header value with both parts
// form-url-encoded as RFC 6749 section 2.3.1 requires
func BasicAuth(clientID, secret string) string {
	raw := url.QueryEscape(clientID) + ":" + url.QueryEscape(secret)
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// Sequence returns a token generator yielding prefix-1, prefix-2, ...
// It is safe for concurrent use.
func Sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// GenerateRandomString generates a random base64-encoded string
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random string: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}
