package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/storage"
)

// RefreshTokenGrant exchanges a refresh token for a new access token
// (RFC 6749 section 6).
type RefreshTokenGrant struct {
	tokens      storage.RefreshTokenStore
	rotate      bool
	gracePeriod time.Duration
	now         func() time.Time
}

// NewRefreshTokenGrant creates the refresh_token grant. With rotate set the
// presented token is consumed and a new refresh token is issued.
func NewRefreshTokenGrant(tokens storage.RefreshTokenStore, rotate bool, gracePeriod time.Duration) *RefreshTokenGrant {
	return &RefreshTokenGrant{
		tokens:      tokens,
		rotate:      rotate,
		gracePeriod: gracePeriod,
		now:         time.Now,
	}
}

// ID implements GrantType
func (g *RefreshTokenGrant) ID() GrantTypeID {
	return GrantTypeRefreshToken
}

// RequiresClientAuth implements GrantType. Public clients may refresh.
func (g *RefreshTokenGrant) RequiresClientAuth() bool {
	return false
}

// ValidateRequest looks the refresh token up without consuming it; rotation
// happens in Commit once scope checks have passed.
func (g *RefreshTokenGrant) ValidateRequest(ctx context.Context, req *Request, client *storage.Client) (*Grant, error) {
	presented := req.Form("refresh_token")
	if presented == "" {
		return nil, ErrInvalidRequest(`Missing parameter: "refresh_token" is required`)
	}

	rt, err := g.tokens.GetRefreshToken(ctx, presented)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidGrant("Invalid refresh token")
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	if !security.ConstantTimeEqual(rt.ClientID, client.ClientID) {
		return nil, ErrInvalidGrant("Invalid refresh token")
	}

	if security.IsExpired(rt.ExpiresAt, g.now(), g.gracePeriod) {
		return nil, ErrInvalidGrant("Refresh token has expired")
	}

	return &Grant{
		GrantType:         GrantTypeRefreshToken,
		ClientID:          client.ClientID,
		UserID:            rt.UserID,
		Scope:             rt.Scope,
		ScopeBound:        true,
		IssueRefreshToken: g.rotate,
		RefreshToken:      presented,
	}, nil
}

// Commit consumes the presented refresh token when rotating.
// SECURITY: of several concurrent refreshes with the same token only the
// caller that wins the atomic consume continues; the others get invalid_grant.
func (g *RefreshTokenGrant) Commit(ctx context.Context, grant *Grant) error {
	if !g.rotate {
		return nil
	}

	if _, err := g.tokens.ConsumeRefreshToken(ctx, grant.RefreshToken); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInvalidGrant("Invalid refresh token")
		}
		return fmt.Errorf("failed to consume refresh token: %w", err)
	}
	return nil
}
