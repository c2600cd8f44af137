package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/giantswarm/oauth2-engine/storage"
)

// clientCredentials are the client identification parameters of a token request
type clientCredentials struct {
	clientID  string
	secret    string
	viaBasic  bool
	hasSecret bool
}

// readClientCredentials extracts client credentials from the Authorization
// header or, when allowed, the request body (RFC 6749 section 2.3.1).
func (e *engine) readClientCredentials(req *Request) (*clientCredentials, *Error) {
	user, pass, present, ok := req.BasicAuth()
	if present {
		if !ok {
			return &clientCredentials{viaBasic: true}, ErrInvalidClient("Malformed HTTP Basic credentials")
		}
		// RFC 6749 2.3: a client must not use more than one authentication method
		if req.HasForm("client_secret") {
			return nil, ErrInvalidRequest("Only one method may be used to authenticate at a time (Auth header or POST body)")
		}
		if req.HasForm("client_id") && req.Form("client_id") != user {
			return nil, ErrInvalidRequest("The client_id in the body does not match the Authorization header")
		}
		if user == "" {
			return &clientCredentials{viaBasic: true}, ErrInvalidClient("Client credentials were not found in the headers or body")
		}
		return &clientCredentials{clientID: user, secret: pass, viaBasic: true, hasSecret: pass != ""}, nil
	}

	clientID := req.Form("client_id")
	if clientID == "" {
		return nil, ErrInvalidClient("Client credentials were not found in the headers or body")
	}

	if req.HasForm("client_secret") {
		if e.config.DisallowCredentialsInRequestBody {
			return nil, ErrInvalidRequest("Client credentials in the request body are not allowed; use HTTP Basic authentication")
		}
		secret := req.Form("client_secret")
		return &clientCredentials{clientID: clientID, secret: secret, hasSecret: secret != ""}, nil
	}

	return &clientCredentials{clientID: clientID}, nil
}

// authenticateClient identifies and, for confidential clients, authenticates
// the client of a token request.
//
// SECURITY: when a secret is presented it is validated before the client is
// looked up, so unknown clients and wrong secrets are indistinguishable in
// both response and timing.
func (e *engine) authenticateClient(ctx context.Context, creds *clientCredentials, gt GrantType) (*storage.Client, error) {
	if creds.hasSecret {
		if err := e.stores.Clients.ValidateClientSecret(ctx, creds.clientID, creds.secret); err != nil {
			if errors.Is(err, storage.ErrInvalidCredentials) || errors.Is(err, storage.ErrNotFound) {
				return nil, ErrInvalidClient("The client credentials are invalid")
			}
			return nil, fmt.Errorf("failed to validate client secret: %w", err)
		}
	}

	client, err := e.stores.Clients.GetClient(ctx, creds.clientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidClient("The client credentials are invalid")
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	if client.IsPublic() {
		if e.config.DisallowPublicClients || gt.RequiresClientAuth() {
			return nil, ErrInvalidClient("This client is invalid or must authenticate using a client secret")
		}
		return client, nil
	}

	if !creds.hasSecret {
		return nil, ErrInvalidClient("This client is invalid or must authenticate using a client secret")
	}

	return client, nil
}

// clientErrorResponse builds an invalid_client response, adding the Basic
// challenge when the client tried HTTP Basic (RFC 6749 section 5.2)
func (e *engine) clientErrorResponse(oauthErr *Error, viaBasic bool) *Response {
	resp := newErrorResponse(oauthErr)
	if oauthErr.Code == ErrorCodeInvalidClient && viaBasic {
		resp.Header.Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", e.config.WWWRealm))
	}
	return resp
}
