// Package storage defines the persistence contracts the OAuth engine depends on.
//
// The engine never persists anything itself. A host supplies implementations of:
//   - ClientStore: registered clients and client secret verification
//   - AccessTokenStore: issued access tokens and their metadata
//   - RefreshTokenStore: issued refresh tokens, including atomic consumption
//   - AuthorizationCodeStore: issued authorization codes, consumed exactly once
//   - UserStore: resource owner credential checks (password grant)
//   - ScopeStore: per-client default scopes
//
// Lookups of missing or expired entities return an error wrapping ErrNotFound.
// Any other error is treated by the engine as a collaborator failure and
// surfaces to the client as server_error.
//
// Implementations are provided in subpackages:
//   - storage/memory: in-memory storage for development and testing
package storage
