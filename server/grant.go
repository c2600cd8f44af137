package server

import (
	"context"

	"github.com/giantswarm/oauth2-engine/scope"
	"github.com/giantswarm/oauth2-engine/storage"
)

// GrantTypeID identifies a grant type by its grant_type parameter value
type GrantTypeID string

// Built-in grant types
const (
	GrantTypeAuthorizationCode GrantTypeID = "authorization_code"
	GrantTypeClientCredentials GrantTypeID = "client_credentials"
	GrantTypeRefreshToken      GrantTypeID = "refresh_token"
	GrantTypePassword          GrantTypeID = "password"
	GrantTypeImplicit          GrantTypeID = "implicit"
)

// GrantType is a token endpoint strategy proving entitlement to a token.
type GrantType interface {
	// ID returns the grant_type value this strategy handles
	ID() GrantTypeID

	// RequiresClientAuth reports whether public clients are rejected.
	// Confidential clients always authenticate regardless of this value.
	RequiresClientAuth() bool

	// ValidateRequest checks grant-specific parameters for an already
	// identified client. Expected violations are returned as *Error; any
	// other error is treated as a collaborator failure.
	ValidateRequest(ctx context.Context, req *Request, client *storage.Client) (*Grant, error)
}

// GrantCommitter is implemented by grant types with side effects that must
// only happen once the request is known to succeed, such as consuming a
// rotated refresh token. Commit runs after scope resolution and before any
// token is minted.
type GrantCommitter interface {
	Commit(ctx context.Context, grant *Grant) error
}

// Grant is the validated outcome of GrantType.ValidateRequest
type Grant struct {
	GrantType GrantTypeID
	ClientID  string
	UserID    string

	// Scope is the scope the grant itself carries: the authorized scope of a
	// code, the original scope of a refresh token or a user's scope cap.
	// Empty means the grant does not constrain scope.
	Scope string

	// ScopeBound forbids requesting any scope outside Scope, even when Scope
	// is empty, and skips default scopes. Set for grants whose scope was
	// fixed at authorization time.
	ScopeBound bool

	// IssueRefreshToken asks for a companion refresh token
	IssueRefreshToken bool

	// RefreshToken is the token presented to the refresh_token grant
	RefreshToken string
}

// AvailableScope returns the parsed scope carried by the grant
func (g *Grant) AvailableScope() scope.Scope {
	return scope.Parse(g.Scope)
}
