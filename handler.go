package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/server"
	"github.com/giantswarm/oauth2-engine/storage"
)

// Handler is a thin HTTP adapter for the OAuth engines.
// It translates net/http requests into engine requests and writes engine
// responses back; all protocol decisions are made by the engines.
type Handler struct {
	server *Server
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(s *Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = s.logger
	}
	return &Handler{
		server: s,
		logger: logger,
	}
}

// ConsentDecision is the resource owner's answer to an authorization request
type ConsentDecision struct {
	// UserID identifies the authenticated resource owner
	UserID string

	// Approved is true when the resource owner granted access
	Approved bool

	// Pending means the ConsentFunc wrote its own response, such as a login
	// or consent page, and no decision exists yet
	Pending bool
}

// ConsentFunc authenticates the resource owner and obtains their decision
// for a validated authorization request. The engine never authenticates users.
type ConsentFunc func(w http.ResponseWriter, r *http.Request, params *AuthorizeParams) ConsentDecision

// NewRequest converts an HTTP request into an engine Request. The body is
// parsed for POST, PUT and PATCH requests with a form content type; query
// parameters are kept separate from body parameters.
func NewRequest(r *http.Request) (*Request, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return server.NewRequest(r.Method, r.URL.Query(), r.PostForm, r.Header), nil
}

// WriteResponse writes an engine Response: headers, status code and, when
// the body is non-empty, the JSON body.
func WriteResponse(w http.ResponseWriter, resp *Response) {
	body, err := resp.JSON()
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	for key, values := range resp.Header {
		w.Header()[key] = append([]string(nil), values...)
	}
	if body != nil {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)
	if body != nil {
		_, _ = w.Write(body)
	}
}

// writeResponse writes resp with the configured security headers
func (h *Handler) writeResponse(w http.ResponseWriter, resp *Response) {
	if !h.server.Config.Security.DisableSecurityHeaders {
		security.SetSecurityHeaders(resp.Header, h.server.Config.HTTP.Issuer)
	}
	WriteResponse(w, resp)
}

// parseRequest reads the request with a bounded body. On failure the error
// response has been written and ok is false.
func (h *Handler) parseRequest(w http.ResponseWriter, r *http.Request) (*Request, bool) {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, h.server.Config.HTTP.MaxRequestBodySize)
	}
	req, err := NewRequest(r)
	if err != nil {
		h.logger.Debug("Failed to parse OAuth request", "path", r.URL.Path, "error", err)
		h.writeResponse(w, server.NewErrorResponse(server.ErrInvalidRequest("Failed to parse request")))
		return nil, false
	}
	return req, true
}

// ServeToken handles the OAuth token endpoint
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}
	h.writeResponse(w, h.server.Engine.Token.HandleTokenRequest(r.Context(), req))
}

// AuthorizeHandler returns the authorization endpoint handler. Invalid
// requests are answered before consent is called.
func (h *Handler) AuthorizeHandler(consent ConsentFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, ok := h.parseRequest(w, r)
		if !ok {
			return
		}

		params, resp := h.server.Engine.Authorize.ValidateAuthorizeRequest(r.Context(), req)
		if resp != nil {
			h.writeResponse(w, resp)
			return
		}

		decision := consent(w, r, params)
		if decision.Pending {
			return
		}

		h.writeResponse(w, h.server.Engine.Authorize.HandleAuthorizeRequest(r.Context(), req, decision.Approved, decision.UserID))
	})
}

// ValidateToken is middleware that requires a valid bearer token.
// The token metadata is available to next through AccessTokenFromContext.
func (h *Handler) ValidateToken(next http.Handler) http.Handler {
	return h.RequireScope("", next)
}

// RequireScope is middleware that requires a valid bearer token covering
// every scope in the space-delimited requiredScope
func (h *Handler) RequireScope(requiredScope string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := h.resourceRequest(r)
		if err != nil {
			h.logger.Debug("Failed to read protected resource request", "path", r.URL.Path, "error", err)
			WriteResponse(w, server.NewErrorResponse(server.ErrInvalidRequest("Failed to parse request")))
			return
		}

		token, resp := h.server.Engine.Resource.GetAccessTokenData(r.Context(), req, requiredScope)
		if resp != nil {
			WriteResponse(w, resp)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithAccessToken(r.Context(), token)))
	})
}

// replayBody hands the bytes read ahead of next back to it, followed by the
// unread rest of the original body
type replayBody struct {
	io.Reader
	io.Closer
}

// resourceRequest builds the engine request for a protected resource. The
// body belongs to next: it is only read when the token may travel in a form
// parameter, and whatever was read is replayed.
func (h *Handler) resourceRequest(r *http.Request) (*Request, error) {
	param := h.server.Engine.Config().TokenParamName
	if param == "" || r.Body == nil || r.Body == http.NoBody || !isFormURLEncoded(r.Header.Get("Content-Type")) {
		return server.NewRequest(r.Method, r.URL.Query(), nil, r.Header), nil
	}

	limit := h.server.Config.HTTP.MaxRequestBodySize
	buf, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	r.Body = replayBody{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), Closer: r.Body}
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) > limit {
		// Too large for a token form, so only the header and query count
		return server.NewRequest(r.Method, r.URL.Query(), nil, r.Header), nil
	}

	form, err := url.ParseQuery(string(buf))
	if err != nil {
		return nil, err
	}
	return server.NewRequest(r.Method, r.URL.Query(), form, r.Header), nil
}

func isFormURLEncoded(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}

// ServeAuthorizationServerMetadata serves RFC 8414 metadata derived from the
// enabled grant and response types
func (h *Handler) ServeAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := json.Marshal(h.buildMetadata())
	if err != nil {
		h.logger.Error("Failed to encode authorization server metadata", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	if !h.server.Config.Security.DisableSecurityHeaders {
		security.SetSecurityHeaders(w.Header(), h.server.Config.HTTP.Issuer)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) buildMetadata() AuthorizationServerMetadata {
	cfg := h.server.Config.HTTP
	engine := h.server.Engine
	engineCfg := engine.Config()
	issuer := strings.TrimSuffix(cfg.Issuer, "/")

	responseTypes := make([]string, 0, 2)
	grantTypes := make([]string, 0, 5)
	for _, rt := range engine.ResponseTypes() {
		responseTypes = append(responseTypes, string(rt))
		if rt == server.ResponseTypeToken {
			grantTypes = append(grantTypes, string(server.GrantTypeImplicit))
		}
	}
	for _, gt := range engine.GrantTypes() {
		// The token endpoint implicit stub always rejects
		if gt == server.GrantTypeImplicit {
			continue
		}
		grantTypes = append(grantTypes, string(gt))
	}
	slices.Sort(responseTypes)
	slices.Sort(grantTypes)

	authMethods := []string{"client_secret_basic"}
	if !engineCfg.DisallowCredentialsInRequestBody {
		authMethods = append(authMethods, "client_secret_post")
	}
	if !engineCfg.DisallowPublicClients {
		authMethods = append(authMethods, "none")
	}

	metadata := AuthorizationServerMetadata{
		Issuer:                            issuer,
		TokenEndpoint:                     issuer + cfg.TokenPath,
		ScopesSupported:                   engineCfg.SupportedScopes,
		ResponseTypesSupported:            responseTypes,
		GrantTypesSupported:               grantTypes,
		TokenEndpointAuthMethodsSupported: authMethods,
	}
	if len(responseTypes) > 0 {
		metadata.AuthorizationEndpoint = issuer + cfg.AuthorizePath
	}
	return metadata
}

// RegisterRoutes registers the token endpoint, the authorization endpoint
// when consent is non-nil and the metadata endpoint when an issuer is set
func (h *Handler) RegisterRoutes(mux *http.ServeMux, consent ConsentFunc) {
	cfg := h.server.Config.HTTP
	mux.HandleFunc(cfg.TokenPath, h.ServeToken)
	if consent != nil {
		mux.Handle(cfg.AuthorizePath, h.AuthorizeHandler(consent))
	}
	if cfg.Issuer != "" {
		mux.HandleFunc(metadataPath, h.ServeAuthorizationServerMetadata)
	}
}

// Context key for access token data
type contextKey string

const accessTokenKey contextKey = "access_token"

// AccessTokenFromContext retrieves the verified access token metadata set by
// ValidateToken or RequireScope
func AccessTokenFromContext(ctx context.Context) (*storage.AccessToken, bool) {
	token, ok := ctx.Value(accessTokenKey).(*storage.AccessToken)
	return token, ok
}

// ContextWithAccessToken creates a context with the given access token metadata.
//
// WARNING: This function should ONLY be used for testing. In production the
// token should ONLY be set by the middleware after verification.
func ContextWithAccessToken(ctx context.Context, token *storage.AccessToken) context.Context {
	return context.WithValue(ctx, accessTokenKey, token)
}
