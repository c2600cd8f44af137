package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/giantswarm/oauth2-engine/internal/testutil"
	"github.com/giantswarm/oauth2-engine/storage/memory"
)

type testEnv struct {
	store *memory.Store
	srv   *Server
	clock *testutil.MockTime
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func allStores(store *memory.Store) Storage {
	return Storage{
		Clients:            store,
		AccessTokens:       store,
		RefreshTokens:      store,
		AuthorizationCodes: store,
		Users:              store,
		Scopes:             store,
	}
}

func newTestEnv(t *testing.T, cfg *Config, opts ...Option) *testEnv {
	t.Helper()
	store := testutil.NewStore(t)
	clock := testutil.NewMockTime(time.Now())

	opts = append([]Option{WithClock(clock.Now)}, opts...)
	srv, err := New(allStores(store), cfg, discardLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)

	return &testEnv{store: store, srv: srv, clock: clock}
}

func tokenRequest(form url.Values, authorization string) *Request {
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	if authorization != "" {
		header.Set("Authorization", authorization)
	}
	return NewRequest(http.MethodPost, nil, form, header)
}

func authorizeRequest(query url.Values) *Request {
	return NewRequest(http.MethodGet, query, nil, nil)
}

func bearerRequest(token string) *Request {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	return NewRequest(http.MethodGet, nil, nil, header)
}

// clientCredentialsToken issues a token for the confidential fixture client
func (env *testEnv) clientCredentialsToken(t *testing.T, scope string) map[string]any {
	t.Helper()
	form := url.Values{"grant_type": {"client_credentials"}}
	if scope != "" {
		form.Set("scope", scope)
	}
	resp := env.srv.Token.HandleTokenRequest(context.Background(), tokenRequest(form,
		testutil.BasicAuth(testutil.ConfidentialClientID, testutil.ConfidentialClientSecret)))
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %v", resp.Body)
	return resp.Body
}

// authorizeCode runs an approved code authorization and returns the issued code
func (env *testEnv) authorizeCode(t *testing.T, query url.Values, userID string) string {
	t.Helper()
	resp := env.srv.Authorize.HandleAuthorizeRequest(context.Background(), authorizeRequest(query), true, userID)
	require.True(t, resp.IsRedirect(), "expected redirect, got %d %v", resp.StatusCode, resp.Body)

	location, err := url.Parse(resp.RedirectURL())
	require.NoError(t, err)
	code := location.Query().Get("code")
	require.NotEmpty(t, code, "location: %s", resp.RedirectURL())
	return code
}

func codeQuery(clientID, redirectURI, scope, state string) url.Values {
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {clientID},
	}
	if redirectURI != "" {
		q.Set("redirect_uri", redirectURI)
	}
	if scope != "" {
		q.Set("scope", scope)
	}
	if state != "" {
		q.Set("state", state)
	}
	return q
}

func exchangeCodeForm(code, redirectURI string) url.Values {
	form := url.Values{
		"grant_type": {"authorization_code"},
		"code":       {code},
	}
	if redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}
	return form
}
