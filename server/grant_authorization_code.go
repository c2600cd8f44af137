package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/storage"
)

// AuthorizationCodeGrant exchanges an authorization code for tokens
// (RFC 6749 section 4.1.3).
type AuthorizationCodeGrant struct {
	codes       storage.AuthorizationCodeStore
	gracePeriod time.Duration
	now         func() time.Time
}

// NewAuthorizationCodeGrant creates the authorization_code grant
func NewAuthorizationCodeGrant(codes storage.AuthorizationCodeStore, gracePeriod time.Duration) *AuthorizationCodeGrant {
	return &AuthorizationCodeGrant{
		codes:       codes,
		gracePeriod: gracePeriod,
		now:         time.Now,
	}
}

// ID implements GrantType
func (g *AuthorizationCodeGrant) ID() GrantTypeID {
	return GrantTypeAuthorizationCode
}

// RequiresClientAuth implements GrantType. Public clients may exchange codes.
func (g *AuthorizationCodeGrant) RequiresClientAuth() bool {
	return false
}

// ValidateRequest consumes the code and checks it was issued to this client
// for the presented redirect_uri.
//
// SECURITY: the code is consumed before any other check, so a code presented
// with the wrong client or redirect_uri is burned and cannot be retried.
func (g *AuthorizationCodeGrant) ValidateRequest(ctx context.Context, req *Request, client *storage.Client) (*Grant, error) {
	code := req.Form("code")
	if code == "" {
		return nil, ErrInvalidRequest(`Missing parameter: "code" is required`)
	}

	authCode, err := g.codes.ConsumeAuthorizationCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidGrant("Authorization code doesn't exist or is invalid for the client")
		}
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	if !security.ConstantTimeEqual(authCode.ClientID, client.ClientID) {
		return nil, ErrInvalidGrant("Authorization code doesn't exist or is invalid for the client")
	}

	// RFC 6749 4.1.3: redirect_uri must be identical when it was part of the authorization request
	if authCode.RedirectURI != "" && req.Form("redirect_uri") != authCode.RedirectURI {
		return nil, ErrInvalidGrant("The redirect URI is missing or does not match")
	}

	if security.IsExpired(authCode.ExpiresAt, g.now(), g.gracePeriod) {
		return nil, ErrInvalidGrant("The authorization code has expired")
	}

	return &Grant{
		GrantType:         GrantTypeAuthorizationCode,
		ClientID:          client.ClientID,
		UserID:            authCode.UserID,
		Scope:             authCode.Scope,
		ScopeBound:        true,
		IssueRefreshToken: true,
	}, nil
}
