package scope

import (
	"context"
	"fmt"
)

// DefaultLookup resolves a per-client default scope. It is satisfied by
// storage.ScopeStore; an empty result means "no client-specific default".
type DefaultLookup interface {
	GetDefaultScope(ctx context.Context, clientID string) (string, error)
}

// Checker applies the server scope policy.
// It is immutable after construction and safe for concurrent use.
type Checker struct {
	supported    Scope
	defaultScope Scope
	lookup       DefaultLookup
}

// NewChecker creates a Checker.
//
// supported lists every scope the server understands; when empty, any token is
// accepted. defaultScope is granted when a request names no scope and no
// per-client default exists. lookup may be nil.
func NewChecker(supported []string, defaultScope string, lookup DefaultLookup) *Checker {
	return &Checker{
		supported:    FromSlice(supported),
		defaultScope: Parse(defaultScope),
		lookup:       lookup,
	}
}

// Supported reports whether requested only uses scopes the server knows about
// and, when clientAllowed is non-empty, only scopes the client may request.
func (c *Checker) Supported(requested Scope, clientAllowed Scope) bool {
	if len(c.supported) > 0 && !requested.IsSubsetOf(c.supported) {
		return false
	}
	if len(clientAllowed) > 0 && !requested.IsSubsetOf(clientAllowed) {
		return false
	}
	return true
}

// Default returns the scope to grant when a request names none: the per-client
// default from the lookup first, then the server-wide default.
func (c *Checker) Default(ctx context.Context, clientID string) (Scope, error) {
	if c.lookup != nil && clientID != "" {
		s, err := c.lookup.GetDefaultScope(ctx, clientID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up default scope: %w", err)
		}
		if parsed := Parse(s); len(parsed) > 0 {
			return parsed, nil
		}
	}
	return c.defaultScope, nil
}

// Resolution is the outcome of Resolve.
type Resolution int

const (
	// Granted means the returned scope may be issued.
	Granted Resolution = iota
	// NotCovered means the request asked for more than the grant allows.
	NotCovered
	// Unsupported means the request used a scope the server or client does not support.
	Unsupported
)

// Resolve decides the scope to issue for a token request.
//
// available is the scope the grant itself carries (the code's scope, the
// original refresh token's scope, the user's scope cap); it may be empty.
// clientAllowed is the client's registered scope set; it may be empty.
//
//   - requested and available: requested must be a subset of both available
//     and clientAllowed.
//   - requested only: requested must be supported for the client.
//   - available only: available is issued, narrowed to clientAllowed.
//   - neither: the default scope is issued (possibly empty).
func (c *Checker) Resolve(ctx context.Context, requested, available, clientAllowed Scope, clientID string) (Scope, Resolution, error) {
	switch {
	case len(requested) > 0 && len(available) > 0:
		if !requested.IsSubsetOf(available) {
			return nil, NotCovered, nil
		}
		if len(clientAllowed) > 0 && !requested.IsSubsetOf(clientAllowed) {
			return nil, NotCovered, nil
		}
		return requested, Granted, nil
	case len(requested) > 0:
		if !c.Supported(requested, clientAllowed) {
			return nil, Unsupported, nil
		}
		return requested, Granted, nil
	case len(available) > 0:
		if len(clientAllowed) > 0 {
			return available.Intersect(clientAllowed), Granted, nil
		}
		return available, Granted, nil
	}

	def, err := c.Default(ctx, clientID)
	if err != nil {
		return nil, Granted, err
	}
	if len(clientAllowed) > 0 && !def.IsSubsetOf(clientAllowed) {
		// A server-wide default the client may not use degrades to the overlap.
		def = def.Intersect(clientAllowed)
	}
	return def, Granted, nil
}
