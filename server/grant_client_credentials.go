package server

import (
	"context"

	"github.com/giantswarm/oauth2-engine/storage"
)

// ClientCredentialsGrant issues tokens to a client acting on its own behalf
// (RFC 6749 section 4.4).
type ClientCredentialsGrant struct{}

// NewClientCredentialsGrant creates the client_credentials grant
func NewClientCredentialsGrant() *ClientCredentialsGrant {
	return &ClientCredentialsGrant{}
}

// ID implements GrantType
func (g *ClientCredentialsGrant) ID() GrantTypeID {
	return GrantTypeClientCredentials
}

// RequiresClientAuth implements GrantType
func (g *ClientCredentialsGrant) RequiresClientAuth() bool {
	return true
}

// ValidateRequest implements GrantType. Authentication already proved
// everything this grant needs; no refresh token is issued (RFC 6749 4.4.3).
func (g *ClientCredentialsGrant) ValidateRequest(_ context.Context, _ *Request, client *storage.Client) (*Grant, error) {
	return &Grant{
		GrantType: GrantTypeClientCredentials,
		ClientID:  client.ClientID,
	}, nil
}
