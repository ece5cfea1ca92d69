package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes one backend call. It is passed by value: a replay is a copy
// with Retried set, never a mutation of the caller's descriptor.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
	// BodyFrom, when set, builds the JSON body each time the request is
	// dispatched, so a replay after a refresh sees the rotated credentials.
	// It takes precedence over Body.
	BodyFrom func() any

	// Retried marks a replay after a refresh. A retried request that is
	// rejected again is not refreshed a second time.
	Retried bool
	// SkipRefresh lets a 401 through untouched. Used by public endpoints such
	// as login, where 401 means wrong credentials rather than an expired token.
	SkipRefresh bool
}

type RequestOption func(*Request)

func WithQuery(q url.Values) RequestOption {
	return func(r *Request) { r.Query = q }
}

func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = make(http.Header)
		}
		r.Header.Set(key, value)
	}
}

func WithoutRefresh() RequestOption {
	return func(r *Request) { r.SkipRefresh = true }
}

// WithBodyFrom defers building the JSON body until dispatch.
func WithBodyFrom(fn func() any) RequestOption {
	return func(r *Request) { r.BodyFrom = fn }
}

func NewRequest(method, path string, body any, opts ...RequestOption) (Request, error) {
	req := Request{Method: method, Path: path}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return Request{}, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		req.Body = raw
	}
	for _, opt := range opts {
		opt(&req)
	}
	return req, nil
}

func (r Request) encodeBody() ([]byte, error) {
	if r.BodyFrom == nil {
		return r.Body, nil
	}
	raw, err := json.Marshal(r.BodyFrom())
	if err != nil {
		return nil, fmt.Errorf("encode %s %s body: %w", r.Method, r.Path, err)
	}
	return raw, nil
}

func (r Request) retried() Request {
	replay := r
	replay.Retried = true
	if r.Header != nil {
		replay.Header = r.Header.Clone()
	}
	return replay
}

// Response is a fully read backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) DecodeJSON(out any) error {
	if out == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
