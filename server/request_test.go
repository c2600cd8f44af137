package server

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/giantswarm/oauth2-engine/internal/testutil"
)

func TestNewRequest_CopiesInputs(t *testing.T) {
	query := url.Values{"state": {"a"}}
	form := url.Values{"code": {"c1"}}
	header := http.Header{"Authorization": {"Bearer t1"}}

	req := NewRequest("post", query, form, header)

	query.Set("state", "changed")
	form["code"][0] = "changed"
	header.Set("Authorization", "changed")

	assert.Equal(t, http.MethodPost, req.Method())
	assert.Equal(t, "a", req.Query("state"))
	assert.Equal(t, "c1", req.Form("code"))
	assert.Equal(t, "Bearer t1", req.Header("Authorization"))
}

func TestRequest_Accessors(t *testing.T) {
	req := NewRequest(http.MethodPost,
		url.Values{"client_id": {"from-query"}, "empty": {""}},
		url.Values{"client_id": {"from-form"}, "scope": {"read"}},
		nil)

	assert.Equal(t, "from-query", req.Param("client_id"))
	assert.Equal(t, "read", req.Param("scope"))
	assert.Empty(t, req.Param("missing"))
	assert.True(t, req.HasQuery("empty"))
	assert.False(t, req.HasQuery("scope"))
	assert.True(t, req.HasForm("scope"))
	assert.Empty(t, req.Header("Authorization"))
}

func TestRequest_BasicAuth(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		wantUser    string
		wantPass    string
		wantPresent bool
		wantOK      bool
	}{
		{
			name:        "plain credentials",
			header:      testutil.BasicAuth("client", "secret"),
			wantUser:    "client",
			wantPass:    "secret",
			wantPresent: true,
			wantOK:      true,
		},
		{
			name:        "form encoded credentials",
			header:      testutil.BasicAuth("client id", "s3cr:t%"),
			wantUser:    "client id",
			wantPass:    "s3cr:t%",
			wantPresent: true,
			wantOK:      true,
		},
		{
			name:        "lower case scheme",
			header:      "basic " + testutil.BasicAuth("client", "secret")[len("Basic "):],
			wantUser:    "client",
			wantPass:    "secret",
			wantPresent: true,
			wantOK:      true,
		},
		{
			name:        "not base64",
			header:      "Basic %%%",
			wantPresent: true,
		},
		{
			name:        "no colon",
			header:      "Basic Y2xpZW50",
			wantPresent: true,
		},
		{
			name:   "bearer header",
			header: "Bearer abc",
		},
		{
			name: "no header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.header != "" {
				header.Set("Authorization", tt.header)
			}
			user, pass, present, ok := NewRequest(http.MethodPost, nil, nil, header).BasicAuth()

			assert.Equal(t, tt.wantUser, user)
			assert.Equal(t, tt.wantPass, pass)
			assert.Equal(t, tt.wantPresent, present)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
