package server

import (
	"context"
	"net/url"
)

// ResponseTypeID identifies a response type by its response_type parameter value
type ResponseTypeID string

// Built-in response types
const (
	ResponseTypeCode  ResponseTypeID = "code"
	ResponseTypeToken ResponseTypeID = "token"
)

// ResponseType is an authorize endpoint strategy producing the artifact
// delivered to the client's redirect URI.
type ResponseType interface {
	// ID returns the response_type value this strategy handles
	ID() ResponseTypeID

	// GrantType returns the grant a client must be allowed to use this response type
	GrantType() GrantTypeID

	// AuthorizeResponse mints and persists the artifact for an approved
	// request. It returns the redirect parameters and whether they belong in
	// the URI fragment instead of the query.
	AuthorizeResponse(ctx context.Context, params *AuthorizeParams, userID string) (url.Values, bool, error)
}
