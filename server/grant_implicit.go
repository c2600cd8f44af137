package server

import (
	"context"

	"github.com/giantswarm/oauth2-engine/storage"
)

// ImplicitGrant is registered only when a configuration lists "implicit" as a
// token endpoint grant. The implicit flow issues tokens from the authorize
// endpoint, so this strategy rejects every token request.
type ImplicitGrant struct{}

// NewImplicitGrant creates the rejecting implicit grant
func NewImplicitGrant() *ImplicitGrant {
	return &ImplicitGrant{}
}

// ID implements GrantType
func (g *ImplicitGrant) ID() GrantTypeID {
	return GrantTypeImplicit
}

// RequiresClientAuth implements GrantType
func (g *ImplicitGrant) RequiresClientAuth() bool {
	return false
}

// ValidateRequest always fails with unsupported_grant_type
func (g *ImplicitGrant) ValidateRequest(context.Context, *Request, *storage.Client) (*Grant, error) {
	return nil, ErrUnsupportedGrantType("The implicit grant type is only available at the authorization endpoint")
}
