package scope

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Scope
	}{
		{name: "empty", input: "", want: nil},
		{name: "whitespace only", input: "   ", want: nil},
		{name: "single", input: "read", want: Scope{"read"}},
		{name: "multiple", input: "read write", want: Scope{"read", "write"}},
		{name: "extra spaces", input: "  read   write ", want: Scope{"read", "write"}},
		{name: "duplicates collapse", input: "read write read", want: Scope{"read", "write"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestScope_IsSubsetOf(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		allowed   string
		want      bool
	}{
		{name: "empty requested", requested: "", allowed: "read", want: true},
		{name: "both empty", requested: "", allowed: "", want: true},
		{name: "equal", requested: "read write", allowed: "write read", want: true},
		{name: "strict subset", requested: "read", allowed: "read write", want: true},
		{name: "superset", requested: "read write admin", allowed: "read write", want: false},
		{name: "disjoint", requested: "admin", allowed: "read", want: false},
		{name: "empty allowed", requested: "read", allowed: "", want: false},
		{name: "case sensitive", requested: "READ", allowed: "read", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.requested).IsSubsetOf(Parse(tt.allowed)))
			assert.Equal(t, tt.want, Check(tt.requested, tt.allowed))
		})
	}
}

func TestScope_String(t *testing.T) {
	assert.Equal(t, "read write", Parse("read  write read").String())
	assert.Equal(t, "", Scope(nil).String())
}

func TestScope_Intersect(t *testing.T) {
	got := Parse("read write admin").Intersect(Parse("admin read"))
	assert.Equal(t, Scope{"read", "admin"}, got)
}

type stubLookup struct {
	scopes map[string]string
	err    error
}

func (s *stubLookup) GetDefaultScope(_ context.Context, clientID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.scopes[clientID], nil
}

func TestChecker_Supported(t *testing.T) {
	c := NewChecker([]string{"read", "write", "admin"}, "", nil)

	assert.True(t, c.Supported(Parse("read"), nil))
	assert.False(t, c.Supported(Parse("delete"), nil))
	assert.True(t, c.Supported(Parse("read write"), Parse("read write")))
	assert.False(t, c.Supported(Parse("admin"), Parse("read write")))

	unrestricted := NewChecker(nil, "", nil)
	assert.True(t, unrestricted.Supported(Parse("anything"), nil))
}

func TestChecker_Default(t *testing.T) {
	ctx := context.Background()
	lookup := &stubLookup{scopes: map[string]string{"special": "profile"}}
	c := NewChecker(nil, "basic", lookup)

	got, err := c.Default(ctx, "special")
	require.NoError(t, err)
	assert.Equal(t, Scope{"profile"}, got)

	got, err = c.Default(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, Scope{"basic"}, got)

	failing := NewChecker(nil, "basic", &stubLookup{err: errors.New("boom")})
	_, err = failing.Default(ctx, "special")
	assert.Error(t, err)
}

func TestChecker_Resolve(t *testing.T) {
	ctx := context.Background()
	c := NewChecker([]string{"read", "write", "admin"}, "read", nil)

	tests := []struct {
		name          string
		requested     string
		available     string
		clientAllowed string
		wantScope     string
		wantRes       Resolution
	}{
		{name: "requested within available", requested: "read", available: "read write", wantScope: "read", wantRes: Granted},
		{name: "requested widens available", requested: "read admin", available: "read", wantRes: NotCovered},
		{name: "requested outside client set", requested: "write", available: "read write", clientAllowed: "read", wantRes: NotCovered},
		{name: "requested only, supported", requested: "write", wantScope: "write", wantRes: Granted},
		{name: "requested only, unknown", requested: "delete", wantRes: Unsupported},
		{name: "requested only, not allowed for client", requested: "admin", clientAllowed: "read write", wantRes: Unsupported},
		{name: "available only", available: "read write", wantScope: "read write", wantRes: Granted},
		{name: "available narrowed to client", available: "read write", clientAllowed: "read", wantScope: "read", wantRes: Granted},
		{name: "default", wantScope: "read", wantRes: Granted},
		{name: "default outside client set", clientAllowed: "write", wantScope: "", wantRes: Granted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, res, err := c.Resolve(ctx, Parse(tt.requested), Parse(tt.available), Parse(tt.clientAllowed), "client")
			require.NoError(t, err)
			assert.Equal(t, tt.wantRes, res)
			if res == Granted {
				assert.Equal(t, tt.wantScope, got.String())
			}
		})
	}
}
