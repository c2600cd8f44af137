package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/scope"
	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/storage"
)

// bearerHeaderPattern matches "Authorization: Bearer <token>" (RFC 6750 section 2.1)
var bearerHeaderPattern = regexp.MustCompile(`(?i)^Bearer\s+(\S+)\s*$`)

// ResourceController verifies bearer tokens presented to protected resources
type ResourceController struct {
	engine *engine
}

// VerifyResourceRequest reports whether the request carries a valid,
// unexpired access token covering requiredScope (empty means no scope
// requirement). When it returns false, resp is the RFC 6750 error response.
func (c *ResourceController) VerifyResourceRequest(ctx context.Context, req *Request, requiredScope string) (bool, *Response) {
	token, resp := c.GetAccessTokenData(ctx, req, requiredScope)
	return token != nil, resp
}

// GetAccessTokenData verifies the request's bearer token and returns its
// metadata for the caller's authorization decisions. It never authorizes
// business actions itself.
func (c *ResourceController) GetAccessTokenData(ctx context.Context, req *Request, requiredScope string) (*storage.AccessToken, *Response) {
	e := c.engine
	ctx, span := e.startSpan(ctx, "oauth.resource.verify")
	defer span.End()

	token, resp := c.verify(ctx, req, requiredScope)

	result := instrumentation.ResultSuccess
	if resp != nil {
		result = resp.ErrorCode()
		if result == "" {
			result = "missing_token"
		}
		instrumentation.AddOutcomeAttributes(span, resp.StatusCode, result)
	} else {
		instrumentation.AddOAuthFlowAttributes(span, token.ClientID, token.UserID, token.Scope)
		instrumentation.SetSpanSuccess(span)
	}
	e.metrics.RecordResourceVerification(ctx, result)

	return token, resp
}

func (c *ResourceController) verify(ctx context.Context, req *Request, requiredScope string) (*storage.AccessToken, *Response) {
	e := c.engine

	presented, oauthErr := e.extractBearerToken(req)
	if oauthErr != nil {
		return nil, e.bearerErrorResponse(oauthErr, "")
	}
	if presented == "" {
		// RFC 6750 3.1: no error code when the request carried no credentials
		resp := newResponse(http.StatusUnauthorized)
		resp.Header.Set("WWW-Authenticate", fmt.Sprintf("Bearer realm=%q", e.config.WWWRealm))
		return nil, resp
	}

	token, err := e.stores.AccessTokens.GetAccessToken(ctx, presented)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, e.bearerErrorResponse(ErrInvalidToken("The access token provided is invalid"), "")
		}
		return nil, e.bearerErrorResponse(e.protocolError(ctx, "get_access_token", err), "")
	}

	if security.IsExpired(token.ExpiresAt, e.now(), e.config.gracePeriod()) {
		return nil, e.bearerErrorResponse(ErrInvalidToken("The access token provided has expired"), "")
	}

	if required := scope.Parse(requiredScope); len(required) > 0 {
		if !required.IsSubsetOf(scope.Parse(token.Scope)) {
			e.logger.Debug("Access token lacks required scope",
				"client_id", token.ClientID,
				"required_scope", required.String())
			return nil, e.bearerErrorResponse(
				ErrInsufficientScope("The request requires higher privileges than provided by the access token"),
				required.String())
		}
	}

	return token, nil
}

// extractBearerToken reads the access token from the Authorization header or,
// when TokenParamName is configured, from a query or form parameter.
// Returns "" without error when no token was presented.
func (e *engine) extractBearerToken(req *Request) (string, *Error) {
	header := req.Header("Authorization")
	param := e.config.TokenParamName
	inQuery := param != "" && req.HasQuery(param)
	inBody := param != "" && req.HasForm(param)

	methods := 0
	for _, used := range []bool{header != "", inQuery, inBody} {
		if used {
			methods++
		}
	}
	if methods > 1 {
		return "", ErrInvalidRequest("Only one method may be used to authenticate at a time (Auth header, GET or POST)")
	}

	switch {
	case header != "":
		m := bearerHeaderPattern.FindStringSubmatch(header)
		if m == nil {
			return "", ErrInvalidRequest("Malformed auth header")
		}
		return m[1], nil
	case inQuery:
		return req.Query(param), nil
	case inBody:
		// RFC 6750 2.2: form-encoded body parameter only on requests with a body
		if req.Method() != http.MethodPost && req.Method() != http.MethodPut {
			return "", ErrInvalidRequest("When putting the token in the body, the method must be POST or PUT")
		}
		contentType := req.Header("Content-Type")
		if !strings.HasPrefix(strings.ToLower(contentType), "application/x-www-form-urlencoded") {
			return "", ErrInvalidRequest(`The content type for POST requests must be "application/x-www-form-urlencoded"`)
		}
		return req.Form(param), nil
	}

	return "", nil
}

// bearerErrorResponse builds an RFC 6750 section 3 error response with its
// WWW-Authenticate challenge
func (e *engine) bearerErrorResponse(oauthErr *Error, requiredScope string) *Response {
	resp := newErrorResponse(oauthErr)

	challenge := fmt.Sprintf("Bearer realm=%q, error=%q", e.config.WWWRealm, oauthErr.Code)
	if oauthErr.Description != "" {
		challenge += fmt.Sprintf(", error_description=%q", oauthErr.Description)
	}
	if requiredScope != "" {
		challenge += fmt.Sprintf(", scope=%q", requiredScope)
	}
	resp.Header.Set("WWW-Authenticate", challenge)

	return resp
}
