// Package oauth is an embeddable OAuth 2.0 authorization server engine
// (RFC 6749, RFC 6750).
//
// The protocol engines live in the server package and work on transport
// neutral Request and Response values. This package builds them once from a
// Config and adapts them to net/http:
//
//	srv, err := oauth.New(oauth.Config{
//	    Engine: server.Config{AccessTokenTTL: 900},
//	    HTTP:   oauth.HTTPConfig{Issuer: "https://auth.example.com"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer srv.Shutdown(context.Background())
//
//	h := oauth.NewHandler(srv, nil)
//	mux := http.NewServeMux()
//	h.RegisterRoutes(mux, consent)
//	mux.Handle("/api/", h.RequireScope("read", api))
//
// The host authenticates resource owners; the ConsentFunc passed to
// RegisterRoutes reports who approved or denied an authorization request.
//
// Without configured storage an in-memory store backs every storage contract.
// It is meant for tests and development; production hosts implement the
// interfaces in the storage package.
package oauth
