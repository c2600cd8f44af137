package server

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/internal/util"
	"github.com/giantswarm/oauth2-engine/scope"
)

// TokenController handles token endpoint requests (RFC 6749 section 3.2)
type TokenController struct {
	engine *engine
}

// HandleTokenRequest runs the token flow and returns the wire response:
// 200 with the token body, or an RFC 6749 section 5.2 error.
func (c *TokenController) HandleTokenRequest(ctx context.Context, req *Request) *Response {
	result, resp := c.GrantAccessToken(ctx, req)
	if resp != nil {
		return resp
	}

	resp = newResponse(http.StatusOK)
	resp.Body = result.Body()
	resp.setNoStore()
	return resp
}

// GrantAccessToken runs the token flow and returns the minted token for
// callers that format their own response. On failure the token is nil and
// the error response is returned.
//
// Validation order: request shape, client authentication, grant-specific
// checks, scope. Later error codes are never revealed before earlier stages pass.
func (c *TokenController) GrantAccessToken(ctx context.Context, req *Request) (*TokenResult, *Response) {
	e := c.engine
	ctx, span := e.startSpan(ctx, "oauth.token")
	defer span.End()

	grantType := req.Form("grant_type")
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrGrantType, metricGrantType(e, grantType)))

	result, resp := c.grantAccessToken(ctx, req)
	if resp != nil {
		resp.setNoStore()
	}

	finishSpan(span, resp)
	if result != nil {
		instrumentation.AddOAuthFlowAttributes(span, result.ClientID, result.UserID, result.Scope)
		instrumentation.SetSpanSuccess(span)
	}
	e.metrics.RecordTokenRequest(ctx, metricGrantType(e, grantType), resultOf(resp))

	return result, resp
}

func (c *TokenController) grantAccessToken(ctx context.Context, req *Request) (*TokenResult, *Response) {
	e := c.engine

	if req.Method() != http.MethodPost {
		resp := newErrorResponse(NewError(ErrorCodeInvalidRequest,
			"The request method must be POST when requesting an access token", http.StatusMethodNotAllowed))
		resp.Header.Set("Allow", http.MethodPost)
		return nil, resp
	}

	rawGrantType := req.Form("grant_type")
	if rawGrantType == "" {
		return nil, newErrorResponse(ErrInvalidRequest("The grant type was not specified in the request"))
	}
	gt, ok := e.grantTypes[GrantTypeID(rawGrantType)]
	if !ok {
		return nil, newErrorResponse(ErrUnsupportedGrantType("Grant type \"" + rawGrantType + "\" not supported"))
	}

	creds, credErr := e.readClientCredentials(req)
	if credErr != nil {
		viaBasic := creds != nil && creds.viaBasic
		if credErr.Code == ErrorCodeInvalidClient {
			e.auditor.LogAuthFailure("", "", credErr.Description)
		}
		return nil, e.clientErrorResponse(credErr, viaBasic)
	}

	client, err := e.authenticateClient(ctx, creds, gt)
	if err != nil {
		oauthErr := e.protocolError(ctx, "authenticate_client", err)
		if oauthErr.Code == ErrorCodeInvalidClient {
			e.logger.Debug("Client authentication failed",
				"client_id", creds.clientID,
				"grant_type", rawGrantType,
				"reason", oauthErr.Description)
			e.auditor.LogAuthFailure("", creds.clientID, oauthErr.Description)
		}
		return nil, e.clientErrorResponse(oauthErr, creds.viaBasic)
	}

	if !client.AllowsGrantType(string(gt.ID())) {
		return nil, newErrorResponse(ErrUnauthorizedClient("The grant type is unauthorized for this client_id"))
	}

	if e.rateLimiter != nil && !e.rateLimiter.Allow(client.ClientID) {
		e.logger.Warn("Token endpoint rate limit exceeded", "client_id", client.ClientID)
		e.auditor.LogRateLimitExceeded(client.ClientID)
		e.metrics.RecordRateLimitExceeded(ctx, "client")
		resp := newErrorResponse(ErrTemporarilyUnavailable("Too many token requests for this client, retry later"))
		resp.Header.Set("Retry-After", "1")
		return nil, resp
	}

	grant, err := gt.ValidateRequest(ctx, req, client)
	if err != nil {
		oauthErr := e.protocolError(ctx, "validate_grant", err)
		if oauthErr.Code == ErrorCodeInvalidGrant {
			e.logger.Debug("Grant rejected",
				"client_id", client.ClientID,
				"grant_type", rawGrantType,
				"reason", oauthErr.Description)
			e.auditor.LogInvalidGrant(client.ClientID, rawGrantType, oauthErr.Description)
		}
		return nil, newErrorResponse(oauthErr)
	}

	granted, scopeErr := e.resolveTokenScope(ctx, req, grant, client.Scopes)
	if scopeErr != nil {
		return nil, newErrorResponse(e.protocolError(ctx, "resolve_scope", scopeErr))
	}

	if committer, ok := gt.(GrantCommitter); ok {
		if err := committer.Commit(ctx, grant); err != nil {
			oauthErr := e.protocolError(ctx, "commit_grant", err)
			if oauthErr.Code == ErrorCodeInvalidGrant {
				e.auditor.LogInvalidGrant(client.ClientID, rawGrantType, oauthErr.Description)
			}
			return nil, newErrorResponse(oauthErr)
		}
	}

	refreshScope := granted.String()
	if grant.GrantType == GrantTypeRefreshToken {
		// RFC 6749 section 6: a rotated refresh token keeps the original scope
		refreshScope = grant.Scope
	}

	result, err := e.accessTokens.mint(ctx, mintRequest{
		clientID:       client.ClientID,
		userID:         grant.UserID,
		scope:          granted.String(),
		includeRefresh: grant.IssueRefreshToken && e.refreshIssued,
		refreshScope:   refreshScope,
	})
	if err != nil {
		return nil, newErrorResponse(e.protocolError(ctx, "mint_access_token", err))
	}

	withRefresh := result.RefreshToken != ""
	if grant.GrantType == GrantTypeRefreshToken {
		e.auditor.LogTokenRefreshed(grant.UserID, client.ClientID, withRefresh)
	} else {
		e.auditor.LogTokenIssued(grant.UserID, client.ClientID, rawGrantType, result.Scope, withRefresh)
	}
	e.metrics.RecordTokenIssued(ctx, rawGrantType, withRefresh)

	e.logger.Info("Issued access token",
		"client_id", client.ClientID,
		"grant_type", rawGrantType,
		"token_prefix", util.RedactToken(result.AccessToken),
		"refresh_token", withRefresh)

	return result, nil
}

// resolveTokenScope applies the scope policy to a validated grant
func (e *engine) resolveTokenScope(ctx context.Context, req *Request, grant *Grant, clientScopes []string) (scope.Scope, error) {
	requested := scope.Parse(req.Form("scope"))
	available := grant.AvailableScope()
	clientAllowed := scope.FromSlice(clientScopes)

	// Scope fixed at authorization time may be narrowed but never widened or
	// defaulted. The client's current allowance still applies: narrowing a
	// client revokes the dropped scopes from its outstanding grants.
	if grant.ScopeBound {
		if len(requested) == 0 {
			if clientAllowed.IsEmpty() {
				return available, nil
			}
			return available.Intersect(clientAllowed), nil
		}
		if !requested.IsSubsetOf(available) {
			return nil, ErrInvalidScope("The scope requested is invalid for this request")
		}
		if !clientAllowed.IsEmpty() && !requested.IsSubsetOf(clientAllowed) {
			return nil, ErrInvalidScope("The scope requested is invalid for this request")
		}
		return requested, nil
	}

	granted, resolution, err := e.scopes.Resolve(ctx, requested, available, clientAllowed, grant.ClientID)
	if err != nil {
		return nil, err
	}

	switch resolution {
	case scope.NotCovered:
		return nil, ErrInvalidScope("The scope requested is invalid for this request")
	case scope.Unsupported:
		return nil, ErrInvalidScope("An unsupported scope was requested")
	}
	return granted, nil
}

// GetClientCredentials extracts the client credentials of a token request
// without authenticating them. resp is non-nil when the credentials are
// missing, malformed or conflicting.
func (c *TokenController) GetClientCredentials(req *Request) (clientID, clientSecret string, resp *Response) {
	creds, oauthErr := c.engine.readClientCredentials(req)
	if oauthErr != nil {
		viaBasic := creds != nil && creds.viaBasic
		return "", "", c.engine.clientErrorResponse(oauthErr, viaBasic)
	}
	return creds.clientID, creds.secret, nil
}

// metricGrantType bounds the grant_type metric label to enabled grants
func metricGrantType(e *engine, grantType string) string {
	if _, ok := e.grantTypes[GrantTypeID(grantType)]; ok {
		return grantType
	}
	if grantType == "" {
		return "none"
	}
	return "unsupported"
}
