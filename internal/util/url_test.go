package util

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendQuery(t *testing.T) {
	tests := []struct {
		name   string
		rawURL string
		params url.Values
		want   string
	}{
		{
			name:   "no existing query",
			rawURL: "https://app.example.com/cb",
			params: url.Values{"code": {"abc"}, "state": {"xyz"}},
			want:   "https://app.example.com/cb?code=abc&state=xyz",
		},
		{
			name:   "existing query preserved",
			rawURL: "https://app.example.com/cb?tenant=1",
			params: url.Values{"code": {"abc"}},
			want:   "https://app.example.com/cb?code=abc&tenant=1",
		},
		{
			name:   "param overrides existing key",
			rawURL: "https://app.example.com/cb?state=old",
			params: url.Values{"state": {"new"}},
			want:   "https://app.example.com/cb?state=new",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AppendQuery(tt.rawURL, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAppendFragment(t *testing.T) {
	got, err := AppendFragment("https://app.example.com/cb?tenant=1", url.Values{
		"access_token": {"tok"},
		"token_type":   {"Bearer"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/cb?tenant=1#access_token=tok&token_type=Bearer", got)
}

func TestAppendQuery_InvalidURL(t *testing.T) {
	_, err := AppendQuery("http://[::1", url.Values{})
	assert.Error(t, err)

	_, err = AppendFragment("http://[::1", url.Values{})
	assert.Error(t, err)
}
