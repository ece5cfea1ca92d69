package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrRefreshFailed    = errors.New("token refresh failed")
	ErrNoRefreshToken   = errors.New("no refresh token available")
	ErrEmptyAccessToken = errors.New("refresh response carries no access token")
)

// APIError is a non-2xx backend response. Payload holds the decoded JSON body
// as sent by the backend, so field-level validation detail survives.
type APIError struct {
	Status  int
	Body    []byte
	Payload map[string]any
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status, Body: body}
	var payload map[string]any
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		e.Payload = payload
	}
	return e
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message())
}

// Message returns the backend's own message: the "error" field, then "detail",
// then "message". Falls back to the raw body and finally the status text.
func (e *APIError) Message() string {
	for _, key := range []string{"error", "detail", "message"} {
		if msg := joinMessages(e.Payload[key]); msg != "" {
			return msg
		}
	}
	if e.Payload == nil && len(e.Body) > 0 {
		return strings.TrimSpace(string(e.Body))
	}
	if fields := e.FieldErrors(); len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys[0] + ": " + strings.Join(fields[keys[0]], "; ")
	}
	return http.StatusText(e.Status)
}

// FieldErrors returns serializer-style {"field": ["msg", ...]} entries.
func (e *APIError) FieldErrors() map[string][]string {
	out := make(map[string][]string)
	for key, v := range e.Payload {
		list, ok := v.([]any)
		if !ok {
			continue
		}
		msgs := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				msgs = append(msgs, s)
			}
		}
		if len(msgs) > 0 {
			out[key] = msgs
		}
	}
	return out
}

func joinMessages(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}

// RefreshError is what every request waiting on a failed refresh cycle gets.
// It matches ErrRefreshFailed and unwraps to the cause.
type RefreshError struct {
	Cause error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s: %v", ErrRefreshFailed, e.Cause)
}

func (e *RefreshError) Unwrap() error { return e.Cause }

func (e *RefreshError) Is(target error) bool { return target == ErrRefreshFailed }

func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
