// Package scope parses and compares OAuth 2.0 scope strings (RFC 6749 Section 3.3).
//
// A scope is a space-delimited list of case-sensitive tokens. Order carries no
// meaning and duplicates collapse, so the only useful operations are membership
// and subset checks. Checker adds the server policy on top: which scopes are
// supported at all and which default applies when a request names none.
package scope

import (
	"strings"
)

// Scope is a set of scope tokens. The slice keeps first-seen order so that
// String() is stable for a given input, but comparisons ignore order.
type Scope []string

// Parse splits a space-delimited scope string into a Scope.
// Empty tokens and duplicates are dropped.
func Parse(s string) Scope {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(fields))
	out := make(Scope, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// FromSlice builds a Scope from individual tokens, applying the same
// normalization as Parse.
func FromSlice(tokens []string) Scope {
	return Parse(strings.Join(tokens, " "))
}

// String joins the scope back into its wire form.
func (s Scope) String() string {
	return strings.Join(s, " ")
}

// IsEmpty reports whether the scope has no tokens.
func (s Scope) IsEmpty() bool {
	return len(s) == 0
}

// Has reports whether token is part of the scope.
func (s Scope) Has(token string) bool {
	for _, t := range s {
		if t == token {
			return true
		}
	}
	return false
}

// IsSubsetOf reports whether every token of s is contained in allowed.
// The empty scope is a subset of everything.
func (s Scope) IsSubsetOf(allowed Scope) bool {
	if len(s) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(allowed))
	for _, t := range allowed {
		set[t] = struct{}{}
	}
	for _, t := range s {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

// Intersect returns the tokens of s that are also in other, in s's order.
func (s Scope) Intersect(other Scope) Scope {
	var out Scope
	for _, t := range s {
		if other.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// Check reports whether the space-delimited requested scope is covered by the
// space-delimited available scope.
func Check(requested, available string) bool {
	return Parse(requested).IsSubsetOf(Parse(available))
}
