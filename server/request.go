package server

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
)

// Request is an immutable view of an inbound request. Build it with
// NewRequest; the inputs are copied so later changes by the caller are not
// observed.
type Request struct {
	method string
	query  url.Values
	form   url.Values
	header http.Header
}

// NewRequest creates a Request. Any of query, form and header may be nil.
// form holds the decoded request body parameters.
func NewRequest(method string, query, form url.Values, header http.Header) *Request {
	return &Request{
		method: strings.ToUpper(method),
		query:  copyValues(query),
		form:   copyValues(form),
		header: header.Clone(),
	}
}

func copyValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// Method returns the upper-cased HTTP method
func (r *Request) Method() string {
	return r.method
}

// Query returns the first query parameter value for key
func (r *Request) Query(key string) string {
	return r.query.Get(key)
}

// HasQuery reports whether the query contains key, even with an empty value
func (r *Request) HasQuery(key string) bool {
	return r.query.Has(key)
}

// Form returns the first body parameter value for key
func (r *Request) Form(key string) string {
	return r.form.Get(key)
}

// HasForm reports whether the body contains key, even with an empty value
func (r *Request) HasForm(key string) bool {
	return r.form.Has(key)
}

// Param returns the query value for key, falling back to the body
func (r *Request) Param(key string) string {
	if r.query.Has(key) {
		return r.query.Get(key)
	}
	return r.form.Get(key)
}

// Header returns the first header value for key
func (r *Request) Header(key string) string {
	if r.header == nil {
		return ""
	}
	return r.header.Get(key)
}

// BasicAuth returns the credentials of an "Authorization: Basic" header.
// Both parts are form-url-decoded as RFC 6749 section 2.3.1 requires.
// present reports whether a Basic header was sent at all; ok reports whether it parsed.
func (r *Request) BasicAuth() (username, password string, present, ok bool) {
	auth := r.Header("Authorization")
	const prefix = "Basic "
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", "", false, false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(auth[len(prefix):]))
	if err != nil {
		return "", "", true, false
	}
	user, pass, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", "", true, false
	}

	return formDecode(user), formDecode(pass), true, true
}

func formDecode(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return s
}
