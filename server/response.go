package server

import (
	"encoding/json"
	"net/http"
)

// Response is the only channel through which the engine reports an outcome.
// Hosts copy Header, write StatusCode and, when Body is non-empty, encode it as JSON.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       map[string]any
}

func newResponse(status int) *Response {
	return &Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       make(map[string]any),
	}
}

// newErrorResponse creates a response carrying an RFC 6749 error body
func newErrorResponse(e *Error) *Response {
	resp := newResponse(e.Status)
	resp.Body["error"] = e.Code
	if e.Description != "" {
		resp.Body["error_description"] = e.Description
	}
	return resp
}

// NewErrorResponse creates the response for e. Host adapters use it to
// report failures that happen before the engine is reached.
func NewErrorResponse(e *Error) *Response {
	return newErrorResponse(e)
}

// newRedirectResponse creates a 302 response to location
func newRedirectResponse(location string) *Response {
	resp := newResponse(http.StatusFound)
	resp.Header.Set("Location", location)
	return resp
}

// IsRedirect reports whether the response redirects the user agent
func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400 && r.Header.Get("Location") != ""
}

// RedirectURL returns the Location header of a redirect response
func (r *Response) RedirectURL() string {
	return r.Header.Get("Location")
}

// IsSuccess reports whether the status code is 2xx
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ErrorCode returns the OAuth error code of an error response, or ""
func (r *Response) ErrorCode() string {
	code, _ := r.Body["error"].(string)
	return code
}

// ErrorDescription returns the error_description of an error response, or ""
func (r *Response) ErrorDescription() string {
	desc, _ := r.Body["error_description"].(string)
	return desc
}

// JSON encodes the body. An empty body encodes to nil.
func (r *Response) JSON() ([]byte, error) {
	if len(r.Body) == 0 {
		return nil, nil
	}
	return json.Marshal(r.Body)
}

// setNoStore marks the response as carrying credentials (RFC 6749 section 5.1)
func (r *Response) setNoStore() {
	r.Header.Set("Cache-Control", "no-store")
	r.Header.Set("Pragma", "no-cache")
}
