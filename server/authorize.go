package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/internal/util"
	"github.com/giantswarm/oauth2-engine/scope"
	"github.com/giantswarm/oauth2-engine/storage"
)

// AuthorizeParams is a validated authorization request
type AuthorizeParams struct {
	ClientID     string
	Client       *storage.Client
	ResponseType ResponseTypeID

	// RedirectURI is where the response is delivered; either the request's
	// redirect_uri or the client's single registered URI
	RedirectURI string

	// RedirectURIProvided records whether redirect_uri was in the request.
	// Codes issued for such requests require the same redirect_uri at the token endpoint.
	RedirectURIProvided bool

	Scope string
	State string
}

// AuthorizeController handles authorization endpoint requests (RFC 6749 section 3.1)
type AuthorizeController struct {
	engine *engine
}

// redirectError is a validation failure that can be sent to the client's
// verified redirect URI
type redirectError struct {
	err         *Error
	redirectURI string
	state       string
	fragment    bool
}

// ValidateAuthorizeRequest validates an authorization request. Hosts call
// it before showing a consent screen. On failure params is nil and resp is a
// direct error (client or redirect URI could not be verified) or a redirect
// carrying the error to the verified redirect URI.
func (c *AuthorizeController) ValidateAuthorizeRequest(ctx context.Context, req *Request) (*AuthorizeParams, *Response) {
	e := c.engine
	ctx, span := e.startSpan(ctx, "oauth.authorize.validate")
	defer span.End()

	params, resp := c.validate(ctx, req)
	if resp != nil {
		code := authorizeErrorCode(resp)
		instrumentation.AddOutcomeAttributes(span, resp.StatusCode, code)
		e.metrics.RecordAuthorizeRequest(ctx, metricResponseType(req), code)
		return nil, resp
	}

	instrumentation.AddOAuthFlowAttributes(span, params.ClientID, "", params.Scope)
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrResponseType, string(params.ResponseType)))
	instrumentation.SetSpanSuccess(span)
	return params, nil
}

func (c *AuthorizeController) validate(ctx context.Context, req *Request) (*AuthorizeParams, *Response) {
	e := c.engine

	clientID := req.Param("client_id")
	if clientID == "" {
		return nil, newErrorResponse(NewError(ErrorCodeInvalidClient, "No client id supplied", http.StatusBadRequest))
	}

	client, err := e.stores.Clients.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newErrorResponse(NewError(ErrorCodeInvalidClient, "The client id supplied is invalid", http.StatusBadRequest))
		}
		return nil, newErrorResponse(e.protocolError(ctx, "get_client", err))
	}

	// Nothing may be redirected until the redirect URI is verified
	redirectURI, provided, redirectErr := e.resolveRedirectURI(req, client)
	if redirectErr != nil {
		return nil, newErrorResponse(redirectErr)
	}

	state := req.Param("state")
	rawResponseType := req.Param("response_type")
	fail := func(oauthErr *Error) *Response {
		return e.redirectErrorResponse(&redirectError{
			err:         oauthErr,
			redirectURI: redirectURI,
			state:       state,
			fragment:    rawResponseType == string(ResponseTypeToken),
		})
	}

	responseTypeID := ResponseTypeID(rawResponseType)
	if responseTypeID != ResponseTypeCode && responseTypeID != ResponseTypeToken {
		if _, custom := e.responseTypes[responseTypeID]; !custom {
			return nil, fail(ErrInvalidRequest("Invalid or missing response type"))
		}
	}
	rt, ok := e.responseTypes[responseTypeID]
	if !ok {
		if responseTypeID == ResponseTypeToken {
			return nil, fail(ErrUnsupportedResponseType("implicit grant type not supported"))
		}
		return nil, fail(ErrUnsupportedResponseType("authorization code grant type not supported"))
	}
	if !client.AllowsGrantType(string(rt.GrantType())) {
		return nil, fail(ErrUnauthorizedClient("The grant type is unauthorized for this client_id"))
	}

	requested := scope.Parse(req.Param("scope"))
	var granted scope.Scope
	if len(requested) > 0 {
		if !e.scopes.Supported(requested, scope.FromSlice(client.Scopes)) {
			return nil, fail(ErrInvalidScope("An unsupported scope was requested"))
		}
		granted = requested
	} else {
		def, err := e.scopes.Default(ctx, clientID)
		if err != nil {
			return nil, fail(e.protocolError(ctx, "default_scope", err))
		}
		if len(client.Scopes) > 0 {
			def = def.Intersect(scope.FromSlice(client.Scopes))
		}
		granted = def
	}

	if e.config.EnforceState && state == "" {
		return nil, fail(ErrInvalidRequest("The state parameter is required"))
	}

	return &AuthorizeParams{
		ClientID:            clientID,
		Client:              client,
		ResponseType:        responseTypeID,
		RedirectURI:         redirectURI,
		RedirectURIProvided: provided,
		Scope:               granted.String(),
		State:               state,
	}, nil
}

// resolveRedirectURI verifies the request's redirect_uri against the
// client's registered set, or falls back to the single registered URI.
// Every failure here is a direct error: the URI is not trusted yet.
func (e *engine) resolveRedirectURI(req *Request, client *storage.Client) (string, bool, *Error) {
	supplied := req.Param("redirect_uri")
	registered := client.RedirectURIs

	if supplied == "" {
		switch {
		case e.config.EnforceRedirect:
			return "", false, ErrInvalidRequest("The redirect URI is mandatory and was not supplied")
		case len(registered) == 0:
			return "", false, ErrInvalidRequest("No redirect URI was supplied or registered")
		case len(registered) > 1:
			return "", false, ErrInvalidRequest("A redirect URI must be supplied when multiple redirect URIs are registered")
		}
		return registered[0], false, nil
	}

	if strings.Contains(supplied, "#") {
		return "", false, ErrInvalidRequest("The redirect URI must not contain a fragment")
	}
	parsed, err := url.Parse(supplied)
	if err != nil || !parsed.IsAbs() {
		return "", false, ErrInvalidRequest("The redirect URI must be an absolute URI")
	}
	if len(registered) == 0 {
		return "", false, ErrInvalidRequest("No redirect URI is registered for this client")
	}

	for _, candidate := range registered {
		if supplied == candidate {
			return supplied, true, nil
		}
		if e.config.AllowRedirectURIPrefixMatch && redirectURIHasPrefix(parsed, candidate) {
			return supplied, true, nil
		}
	}

	e.logger.Warn("Authorization request redirect URI does not match registered URIs",
		"client_id", client.ClientID,
		"redirect_host", parsed.Host)
	e.auditor.LogRedirectURIMismatch(client.ClientID, parsed.Host)
	return "", false, ErrInvalidRequest("The redirect URI provided does not match a registered redirect URI")
}

// redirectURIHasPrefix reports whether supplied extends the registered URI
// without leaving it: scheme, host and query must match exactly and the path
// may only continue below the registered path at a segment boundary.
func redirectURIHasPrefix(supplied *url.URL, registered string) bool {
	base, err := url.Parse(registered)
	if err != nil || !base.IsAbs() {
		return false
	}
	if supplied.User != nil ||
		!strings.EqualFold(supplied.Scheme, base.Scheme) ||
		!strings.EqualFold(supplied.Host, base.Host) {
		return false
	}
	if base.RawQuery != "" && supplied.RawQuery != base.RawQuery {
		return false
	}

	prefix := base.EscapedPath()
	path := supplied.EscapedPath()
	if strings.Contains(path+"/", "/../") {
		return false
	}
	if prefix == "" || prefix == "/" || path == prefix {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/")
}

// redirectErrorResponse delivers an error to a verified redirect URI
// (RFC 6749 sections 4.1.2.1 and 4.2.2.1)
func (e *engine) redirectErrorResponse(re *redirectError) *Response {
	values := url.Values{}
	values.Set("error", re.err.Code)
	if re.err.Description != "" {
		values.Set("error_description", re.err.Description)
	}
	if re.state != "" {
		values.Set("state", re.state)
	}

	location, err := buildRedirect(re.redirectURI, values, re.fragment)
	if err != nil {
		// The URI was verified against the registered set, so this is a bad registration
		e.logger.Error("Failed to build error redirect", "error", err)
		return newErrorResponse(re.err)
	}
	return newRedirectResponse(location)
}

// HandleAuthorizeRequest completes an authorization request after the host
// has authenticated the resource owner and obtained their decision.
// Approval redirects with a code (query) or an access token (fragment);
// denial redirects with access_denied.
func (c *AuthorizeController) HandleAuthorizeRequest(ctx context.Context, req *Request, isAuthorized bool, userID string) *Response {
	e := c.engine
	ctx, span := e.startSpan(ctx, "oauth.authorize.handle")
	defer span.End()

	resp := c.handle(ctx, req, isAuthorized, userID)

	code := authorizeErrorCode(resp)
	instrumentation.AddOutcomeAttributes(span, resp.StatusCode, code)
	e.metrics.RecordAuthorizeRequest(ctx, metricResponseType(req), resultLabel(code))
	return resp
}

func (c *AuthorizeController) handle(ctx context.Context, req *Request, isAuthorized bool, userID string) *Response {
	e := c.engine

	params, resp := c.validate(ctx, req)
	if resp != nil {
		return resp
	}
	fragment := params.ResponseType == ResponseTypeToken

	if !isAuthorized {
		e.auditor.LogAuthorizationDenied(userID, params.ClientID)
		return e.redirectErrorResponse(&redirectError{
			err:         ErrAccessDenied("The user denied access to your application"),
			redirectURI: params.RedirectURI,
			state:       params.State,
			fragment:    fragment,
		})
	}

	rt := e.responseTypes[params.ResponseType]
	values, inFragment, err := rt.AuthorizeResponse(ctx, params, userID)
	if err != nil {
		return e.redirectErrorResponse(&redirectError{
			err:         e.protocolError(ctx, "authorize_response", err),
			redirectURI: params.RedirectURI,
			state:       params.State,
			fragment:    fragment,
		})
	}

	location, err := buildRedirect(params.RedirectURI, values, inFragment)
	if err != nil {
		return newErrorResponse(e.protocolError(ctx, "build_redirect", err))
	}

	switch params.ResponseType {
	case ResponseTypeCode:
		e.auditor.LogAuthorizationCodeIssued(userID, params.ClientID, params.Scope)
		e.metrics.RecordCodeIssued(ctx)
		e.logger.Info("Issued authorization code",
			"client_id", params.ClientID,
			"code_prefix", util.RedactToken(values.Get("code")))
	case ResponseTypeToken:
		e.auditor.LogImplicitTokenIssued(userID, params.ClientID, params.Scope)
		e.metrics.RecordTokenIssued(ctx, string(GrantTypeImplicit), false)
		e.logger.Info("Issued access token from authorize endpoint",
			"client_id", params.ClientID,
			"token_prefix", util.RedactToken(values.Get("access_token")))
	}

	return newRedirectResponse(location)
}

func buildRedirect(redirectURI string, values url.Values, inFragment bool) (string, error) {
	if inFragment {
		return util.AppendFragment(redirectURI, values)
	}
	return util.AppendQuery(redirectURI, values)
}

// authorizeErrorCode returns the error code of a direct or redirected
// authorize response, or "" for a successful redirect
func authorizeErrorCode(resp *Response) string {
	if code := resp.ErrorCode(); code != "" {
		return code
	}
	if !resp.IsRedirect() {
		return ""
	}
	u, err := url.Parse(resp.RedirectURL())
	if err != nil {
		return ""
	}
	if code := u.Query().Get("error"); code != "" {
		return code
	}
	if fragment, err := url.ParseQuery(u.Fragment); err == nil {
		return fragment.Get("error")
	}
	return ""
}

func resultLabel(code string) string {
	if code == "" {
		return instrumentation.ResultSuccess
	}
	return code
}

// metricResponseType bounds the response_type metric label
func metricResponseType(req *Request) string {
	switch rt := req.Param("response_type"); ResponseTypeID(rt) {
	case ResponseTypeCode, ResponseTypeToken:
		return rt
	case "":
		return "none"
	default:
		return "other"
	}
}
