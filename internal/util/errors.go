package util

import (
	"fmt"
	"net/http"
)

// ResponseError is a handler failure with the status the client should see.
// The API error handler writes it as {"error": Msg}.
type ResponseError struct {
	Status int
	Msg    string
}

func (e ResponseError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Msg)
}

func NewResponseError(status int, format string, args ...any) error {
	return ResponseError{
		Status: status,
		Msg:    fmt.Sprintf(format, args...),
	}
}
