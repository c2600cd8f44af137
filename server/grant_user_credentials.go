package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/giantswarm/oauth2-engine/storage"
)

// UserCredentialsGrant exchanges resource owner credentials for tokens
// (RFC 6749 section 4.3).
//
// Deprecated: the password grant is omitted from OAuth 2.1. It remains for
// first-party clients migrating to the authorization code grant.
type UserCredentialsGrant struct {
	users storage.UserStore
}

// NewUserCredentialsGrant creates the password grant and logs a deprecation notice
func NewUserCredentialsGrant(users storage.UserStore, logger *slog.Logger) *UserCredentialsGrant {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("Password grant is enabled; it is deprecated and omitted from OAuth 2.1",
		"grant_type", string(GrantTypePassword),
		"recommendation", "Migrate clients to the authorization code grant")

	return &UserCredentialsGrant{users: users}
}

// ID implements GrantType
func (g *UserCredentialsGrant) ID() GrantTypeID {
	return GrantTypePassword
}

// RequiresClientAuth implements GrantType
func (g *UserCredentialsGrant) RequiresClientAuth() bool {
	return true
}

// ValidateRequest verifies username and password through the user store.
// The user's scope, when set, caps what may be granted.
func (g *UserCredentialsGrant) ValidateRequest(ctx context.Context, req *Request, client *storage.Client) (*Grant, error) {
	username := req.Form("username")
	password := req.Form("password")
	if username == "" || password == "" {
		return nil, ErrInvalidRequest(`Missing parameters: "username" and "password" required`)
	}

	user, err := g.users.AuthenticateUser(ctx, username, password)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCredentials) || errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidGrant("Invalid username and password combination")
		}
		return nil, fmt.Errorf("failed to authenticate user: %w", err)
	}

	return &Grant{
		GrantType:         GrantTypePassword,
		ClientID:          client.ClientID,
		UserID:            user.UserID,
		Scope:             user.Scope,
		IssueRefreshToken: true,
	}, nil
}
