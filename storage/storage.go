package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned (possibly wrapped) when an entity does not exist,
	// has expired, or has already been consumed.
	ErrNotFound = errors.New("storage: not found")

	// ErrInvalidCredentials is returned by credential checks that fail.
	ErrInvalidCredentials = errors.New("storage: invalid credentials")
)

// ClientStore resolves registered OAuth clients.
type ClientStore interface {
	// GetClient retrieves a client by ID. Returns ErrNotFound for unknown clients.
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// ValidateClientSecret checks a client's secret. Returns ErrInvalidCredentials
	// on mismatch and ErrNotFound for unknown clients.
	// Implementations must compare in constant time.
	ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error
}

// AccessTokenStore persists issued access tokens.
type AccessTokenStore interface {
	// SaveAccessToken stores a newly minted access token.
	SaveAccessToken(ctx context.Context, token *AccessToken) error

	// GetAccessToken retrieves an access token by its string value.
	// Expired tokens may be returned; the engine checks expiry itself.
	GetAccessToken(ctx context.Context, token string) (*AccessToken, error)
}

// RefreshTokenStore persists issued refresh tokens.
type RefreshTokenStore interface {
	// SaveRefreshToken stores a newly minted refresh token.
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error

	// GetRefreshToken retrieves a refresh token without consuming it.
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)

	// ConsumeRefreshToken atomically retrieves and deletes a refresh token, expired or not.
	// SECURITY: only ONE concurrent caller may succeed; all others get ErrNotFound.
	ConsumeRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
}

// AuthorizationCodeStore persists issued authorization codes.
type AuthorizationCodeStore interface {
	// SaveAuthorizationCode stores a newly minted authorization code.
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	// ConsumeAuthorizationCode atomically retrieves and deletes a code, expired or not;
	// the engine checks expiry itself.
	// SECURITY: only ONE concurrent caller may succeed; all others get ErrNotFound.
	ConsumeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)
}

// UserStore verifies resource owner credentials for the password grant.
type UserStore interface {
	// AuthenticateUser checks username and password. Returns ErrInvalidCredentials
	// when they do not match and ErrNotFound for unknown users.
	AuthenticateUser(ctx context.Context, username, password string) (*User, error)
}

// ScopeStore resolves per-client default scopes.
type ScopeStore interface {
	// GetDefaultScope returns the space-delimited default scope for a client,
	// or an empty string when the client has no specific default.
	GetDefaultScope(ctx context.Context, clientID string) (string, error)
}

// Client represents a registered OAuth client
type Client struct {
	ClientID     string
	SecretHash   string   // bcrypt hash; empty for public clients
	RedirectURIs []string // registered redirect URIs
	GrantTypes   []string // allowed grant types; empty allows all enabled ones
	Scopes       []string // allowed scopes; empty allows all supported ones
	ClientName   string
	CreatedAt    time.Time
}

// IsPublic reports whether the client has no secret and therefore cannot authenticate.
func (c *Client) IsPublic() bool {
	return c.SecretHash == ""
}

// AllowsGrantType reports whether the client may use the grant type.
func (c *Client) AllowsGrantType(grantType string) bool {
	if len(c.GrantTypes) == 0 {
		return true
	}
	for _, gt := range c.GrantTypes {
		if gt == grantType {
			return true
		}
	}
	return false
}

// AccessToken represents an issued access token and the metadata a resource
// server needs for authorization decisions.
type AccessToken struct {
	Token     string
	ClientID  string
	UserID    string // empty for client_credentials tokens
	Scope     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// RefreshToken represents an issued refresh token
type RefreshToken struct {
	Token     string
	ClientID  string
	UserID    string
	Scope     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// AuthorizationCode represents an issued authorization code
type AuthorizationCode struct {
	Code        string
	ClientID    string
	UserID      string
	RedirectURI string
	Scope       string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// User represents an authenticated resource owner
type User struct {
	UserID string
	Scope  string // optional cap on what the user may be granted
}
