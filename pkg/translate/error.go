package translate

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a translation endpoint error.
type Error struct {
	// Code is the endpoint's business error code.
	Code int `json:"code"`

	// Message is the human-readable detail.
	Message string `json:"message"`

	// HTTPStatus is set when the error surfaced during the handshake.
	HTTPStatus int `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("translate: %s (code=%d, http_status=%d)", e.Message, e.Code, e.HTTPStatus)
}

// IsAuthError reports whether the credentials were rejected.
func (e *Error) IsAuthError() bool {
	return e.HTTPStatus == http.StatusUnauthorized || e.HTTPStatus == http.StatusForbidden || e.Code == CodeAuthError
}

// IsServerError reports whether the endpoint failed internally.
func (e *Error) IsServerError() bool {
	return e.HTTPStatus >= http.StatusInternalServerError || e.Code == CodeServerError
}

// AsError attempts to convert an error to *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Endpoint status codes.
const (
	CodeSuccess     = 0
	CodeParamError  = 4001
	CodeAuthError   = 4002
	CodeRateLimit   = 4003
	CodeServerError = 5000
)

// wrapError adds context to an underlying error.
func wrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
