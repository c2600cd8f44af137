package server

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/storage"
)

// TokenTypeBearer is the only token type this engine issues (RFC 6750)
const TokenTypeBearer = "Bearer"

// TokenResult is a freshly minted access token with its optional refresh token
type TokenResult struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int64
	ExpiresAt    time.Time
	RefreshToken string
	Scope        string
	ClientID     string
	UserID       string
}

// Body returns the RFC 6749 section 5.1 success body
func (t *TokenResult) Body() map[string]any {
	body := map[string]any{
		"access_token": t.AccessToken,
		"token_type":   t.TokenType,
		"expires_in":   t.ExpiresIn,
	}
	if t.RefreshToken != "" {
		body["refresh_token"] = t.RefreshToken
	}
	if t.Scope != "" {
		body["scope"] = t.Scope
	}
	return body
}

// AccessTokenResponseType mints bearer access tokens and companion refresh
// tokens. It serves the token endpoint and response_type=token.
type AccessTokenResponseType struct {
	accessTokens  storage.AccessTokenStore
	refreshTokens storage.RefreshTokenStore // nil disables refresh tokens
	accessTTL     time.Duration
	refreshTTL    time.Duration
	generate      func() string
	now           func() time.Time
}

// NewAccessTokenResponseType creates the bearer token minter.
// refreshTokens may be nil, in which case no refresh token is ever issued.
func NewAccessTokenResponseType(
	accessTokens storage.AccessTokenStore,
	refreshTokens storage.RefreshTokenStore,
	accessTTL, refreshTTL time.Duration,
) *AccessTokenResponseType {
	return &AccessTokenResponseType{
		accessTokens:  accessTokens,
		refreshTokens: refreshTokens,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		generate:      oauth2.GenerateVerifier,
		now:           time.Now,
	}
}

// ID implements ResponseType
func (rt *AccessTokenResponseType) ID() ResponseTypeID {
	return ResponseTypeToken
}

// GrantType implements ResponseType
func (rt *AccessTokenResponseType) GrantType() GrantTypeID {
	return GrantTypeImplicit
}

// CreateAccessToken mints and stores an access token and, when
// includeRefresh is set and refresh tokens are enabled, a refresh token with
// the same scope.
func (rt *AccessTokenResponseType) CreateAccessToken(ctx context.Context, clientID, userID, scope string, includeRefresh bool) (*TokenResult, error) {
	return rt.mint(ctx, mintRequest{
		clientID:       clientID,
		userID:         userID,
		scope:          scope,
		includeRefresh: includeRefresh,
		refreshScope:   scope,
	})
}

type mintRequest struct {
	clientID       string
	userID         string
	scope          string
	includeRefresh bool
	refreshScope   string
}

func (rt *AccessTokenResponseType) mint(ctx context.Context, m mintRequest) (*TokenResult, error) {
	now := rt.now()

	at := &storage.AccessToken{
		Token:     rt.generate(),
		ClientID:  m.clientID,
		UserID:    m.userID,
		Scope:     m.scope,
		ExpiresAt: now.Add(rt.accessTTL),
		CreatedAt: now,
	}
	if err := rt.accessTokens.SaveAccessToken(ctx, at); err != nil {
		return nil, fmt.Errorf("failed to save access token: %w", err)
	}

	result := &TokenResult{
		AccessToken: at.Token,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   security.ExpiresIn(at.ExpiresAt, now),
		ExpiresAt:   at.ExpiresAt,
		Scope:       m.scope,
		ClientID:    m.clientID,
		UserID:      m.userID,
	}

	if m.includeRefresh && rt.refreshTokens != nil {
		ref := &storage.RefreshToken{
			Token:     rt.generate(),
			ClientID:  m.clientID,
			UserID:    m.userID,
			Scope:     m.refreshScope,
			ExpiresAt: now.Add(rt.refreshTTL),
			CreatedAt: now,
		}
		if err := rt.refreshTokens.SaveRefreshToken(ctx, ref); err != nil {
			return nil, fmt.Errorf("failed to save refresh token: %w", err)
		}
		result.RefreshToken = ref.Token
	}

	return result, nil
}

// AuthorizeResponse implements ResponseType for the implicit flow. The token
// travels in the fragment and no refresh token is issued (RFC 6749 4.2.2).
func (rt *AccessTokenResponseType) AuthorizeResponse(ctx context.Context, params *AuthorizeParams, userID string) (url.Values, bool, error) {
	token, err := rt.CreateAccessToken(ctx, params.ClientID, userID, params.Scope, false)
	if err != nil {
		return nil, true, err
	}

	values := url.Values{}
	values.Set("access_token", token.AccessToken)
	values.Set("token_type", token.TokenType)
	values.Set("expires_in", strconv.FormatInt(token.ExpiresIn, 10))
	if token.Scope != "" {
		values.Set("scope", token.Scope)
	}
	if params.State != "" {
		values.Set("state", params.State)
	}
	return values, true, nil
}
