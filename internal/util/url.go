package util

import (
	"fmt"
	"net/url"
)

// AppendQuery adds params to the query component of rawURL, keeping any
// query parameters already present. Params override existing keys.
//
// Example:
//
//	AppendQuery("https://app/cb?x=1", url.Values{"code": {"abc"}}) // "https://app/cb?code=abc&x=1"
func AppendQuery(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}

	q := u.Query()
	for k, vs := range params {
		q.Del(k)
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// AppendFragment sets the fragment component of rawURL to the encoded params.
// The query component is left untouched.
//
// Example:
//
//	AppendFragment("https://app/cb", url.Values{"access_token": {"t"}}) // "https://app/cb#access_token=t"
func AppendFragment(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}

	u.Fragment = ""
	u.RawFragment = ""

	return u.String() + "#" + params.Encode(), nil
}
