package oauth2

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when a client registration cannot be used as configured,
	// e.g. it has no scopes or no token endpoint.
	ErrConfiguration = errors.New("client registration misconfigured")

	// ErrInvalidArgument is returned for bad caller input such as an empty assertion.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnknownClient is returned when no registration exists for the requested id.
	ErrUnknownClient = errors.New("unknown client registration")

	// ErrNoAuthenticatedPrincipal is returned when the caller has no usable bearer assertion.
	ErrNoAuthenticatedPrincipal = errors.New("no authenticated principal with a usable assertion")

	// ErrAuthorizationRequired is returned when a token can only be obtained through
	// an interactive login (authorization_code without a refresh token).
	ErrAuthorizationRequired = errors.New("user authorization required")

	// ErrInvalidTokenResponse is wrapped by parse failures of a token endpoint response.
	ErrInvalidTokenResponse = errors.New("invalid token response")
)

// ExchangeErrorKind classifies a failed token endpoint round trip.
type ExchangeErrorKind int

const (
	// KindStatus means the token endpoint answered with a non-2xx status.
	KindStatus ExchangeErrorKind = iota
	// KindParse means a 2xx body could not be turned into an access token.
	KindParse
	// KindTransport means no response was received.
	KindTransport
)

func (k ExchangeErrorKind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindParse:
		return "parse"
	case KindTransport:
		return "transport"
	}
	return "unknown"
}

// TokenExchangeError carries everything known about a failed token endpoint call.
// Body is the raw response text, kept for diagnostics.
type TokenExchangeError struct {
	Kind       ExchangeErrorKind
	StatusCode int
	Body       string
	URI        string
	Err        error
}

func (e *TokenExchangeError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("token endpoint %s returned status %d: %s", e.URI, e.StatusCode, e.Body)
	case KindTransport:
		return fmt.Sprintf("token endpoint %s unreachable: %v", e.URI, e.Err)
	default:
		return fmt.Sprintf("token endpoint %s returned an unreadable response: %v", e.URI, e.Err)
	}
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}

// OAuthError decodes an RFC 6749 error body, if the server sent one
func (e *TokenExchangeError) OAuthError() (code, description string, ok bool) {
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal([]byte(e.Body), &body); err != nil || body.Error == "" {
		return "", "", false
	}
	return body.Error, body.ErrorDescription, true
}

// AuthorizationFailedError is returned by the authorized client provider when a token
// could not be acquired. The cause is reachable with errors.As / errors.Is.
type AuthorizationFailedError struct {
	RegistrationID string
	Principal      string
	Err            error
}

func (e *AuthorizationFailedError) Error() string {
	return fmt.Sprintf("authorization failed for client %q and principal %q: %v", e.RegistrationID, e.Principal, e.Err)
}

func (e *AuthorizationFailedError) Unwrap() error {
	return e.Err
}
