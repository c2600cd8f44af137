package server

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth2-engine/storage"
)

// AuthorizationCodeResponseType mints short-lived single-use authorization codes
type AuthorizationCodeResponseType struct {
	codes    storage.AuthorizationCodeStore
	ttl      time.Duration
	generate func() string
	now      func() time.Time
}

// NewAuthorizationCodeResponseType creates the code minter
func NewAuthorizationCodeResponseType(codes storage.AuthorizationCodeStore, ttl time.Duration) *AuthorizationCodeResponseType {
	return &AuthorizationCodeResponseType{
		codes:    codes,
		ttl:      ttl,
		generate: oauth2.GenerateVerifier,
		now:      time.Now,
	}
}

// ID implements ResponseType
func (rt *AuthorizationCodeResponseType) ID() ResponseTypeID {
	return ResponseTypeCode
}

// GrantType implements ResponseType
func (rt *AuthorizationCodeResponseType) GrantType() GrantTypeID {
	return GrantTypeAuthorizationCode
}

// CreateAuthorizationCode mints and stores a code bound to the client, user,
// redirect URI and scope. redirectURI is empty when the authorization request
// did not carry one, in which case the token request need not repeat it.
func (rt *AuthorizationCodeResponseType) CreateAuthorizationCode(ctx context.Context, clientID, userID, redirectURI, scope string) (string, error) {
	now := rt.now()
	code := &storage.AuthorizationCode{
		Code:        rt.generate(),
		ClientID:    clientID,
		UserID:      userID,
		RedirectURI: redirectURI,
		Scope:       scope,
		ExpiresAt:   now.Add(rt.ttl),
		CreatedAt:   now,
	}
	if err := rt.codes.SaveAuthorizationCode(ctx, code); err != nil {
		return "", fmt.Errorf("failed to save authorization code: %w", err)
	}
	return code.Code, nil
}

// AuthorizeResponse implements ResponseType
func (rt *AuthorizationCodeResponseType) AuthorizeResponse(ctx context.Context, params *AuthorizeParams, userID string) (url.Values, bool, error) {
	boundRedirect := ""
	if params.RedirectURIProvided {
		boundRedirect = params.RedirectURI
	}

	code, err := rt.CreateAuthorizationCode(ctx, params.ClientID, userID, boundRedirect, params.Scope)
	if err != nil {
		return nil, false, err
	}

	values := url.Values{}
	values.Set("code", code)
	if params.State != "" {
		values.Set("state", params.State)
	}
	return values, false, nil
}
