package oauthmodel

import (
	"net/http"

	"github.com/jrsteele09/go-obo-blueprints/internal/errors"
)

// RFC 6749 section 5.2 error codes, plus invalid_token from RFC 6750
const (
	ErrorInvalidRequest       = "invalid_request"
	ErrorInvalidClient        = "invalid_client"
	ErrorInvalidGrant         = "invalid_grant"
	ErrorUnsupportedGrantType = "unsupported_grant_type"
	ErrorInvalidScope         = "invalid_scope"
	ErrorInvalidToken         = "invalid_token"
	ErrorServerError          = "server_error"
)

// ErrorResponse is the JSON error body of the token endpoint and the protected APIs
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// ErrorCode maps an error onto its OAuth error code and HTTP status
func ErrorCode(err error) (string, int) {
	switch {
	case errors.Is(err, errors.ErrInvalidClient), errors.Is(err, errors.ErrInvalidClientSecret):
		return ErrorInvalidClient, http.StatusUnauthorized
	case errors.Is(err, errors.ErrInvalidGrant):
		return ErrorInvalidGrant, http.StatusBadRequest
	case errors.Is(err, errors.ErrUnsupportedGrantType):
		return ErrorUnsupportedGrantType, http.StatusBadRequest
	case errors.Is(err, errors.ErrInvalidScope):
		return ErrorInvalidScope, http.StatusBadRequest
	case errors.Is(err, errors.ErrInvalidRequest):
		return ErrorInvalidRequest, http.StatusBadRequest
	case errors.Is(err, errors.ErrInvalidToken), errors.Is(err, errors.ErrMissingToken):
		return ErrorInvalidToken, http.StatusUnauthorized
	}
	return ErrorServerError, http.StatusInternalServerError
}
