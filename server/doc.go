// Package server implements the OAuth 2.0 protocol engine (RFC 6749 / RFC 6750).
//
// The engine owns protocol logic only. A host translates its transport
// request into a *Request, hands it to one of three controllers and writes
// back the returned *Response:
//
//   - TokenController: grant_type dispatch and access token issuance
//   - AuthorizeController: authorization request validation and redirects
//   - ResourceController: bearer token verification
//
// Grant types (authorization_code, client_credentials, refresh_token,
// password, and a rejecting implicit stub) and response types (code, token)
// are pluggable strategies resolved once in New. Persistence is delegated to
// the storage contracts; single-use codes and refresh token rotation rely on
// the store's atomic consume operations.
//
// Every entry point returns its outcome as a *Response. Protocol violations
// become RFC 6749 error bodies; collaborator failures become a generic
// server_error whose details are only logged.
//
// Example usage:
//
//	store := memory.New()
//	defer store.Stop()
//
//	srv, err := server.New(server.Storage{
//	    Clients:            store,
//	    AccessTokens:       store,
//	    RefreshTokens:      store,
//	    AuthorizationCodes: store,
//	}, &server.Config{DefaultScope: "read"}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp := srv.Token.HandleTokenRequest(ctx, req)
package server
