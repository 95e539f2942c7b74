package oauth2

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Standard token response fields. Anything else lands in AccessToken.AdditionalParameters.
const (
	fieldAccessToken  = "access_token"
	fieldTokenType    = "token_type"
	fieldExpiresIn    = "expires_in"
	fieldScope        = "scope"
	fieldRefreshToken = "refresh_token"
)

// defaultExpiresIn applies when a response omits expires_in. The token is then
// treated as expiring almost immediately, so it is never served from a cache.
const defaultExpiresIn = 1 * time.Second

// maxExpiresIn bounds expires_in so the expiry instant cannot overflow time.Duration
const maxExpiresIn = 10 * 365 * 24 * time.Hour

// TokenResponse is the RFC 6749 token endpoint response as it appears on the wire.
// The mock authorization server writes it; clients read it with ParseTokenResponse.
type TokenResponse struct {
	// AccessToken is the token used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// TokenType indicates how to use the access token (always "Bearer" here).
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Note: Azure AD has been seen to send this as a string ("3600"); ParseTokenResponse accepts both
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// ExtExpiresIn is Azure AD's extended lifetime, kept as an additional parameter by clients.
	ExtExpiresIn int64 `json:"ext_expires_in,omitempty"`

	// Scope indicates the access token's granted permissions, space separated.
	Scope string `json:"scope,omitempty"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ParseTokenResponse turns a 2xx token endpoint body into an AccessToken.
// expires_in may be a JSON number or a numeric string and is made absolute against receivedAt.
// An absent scope inherits requestedScopes. All errors wrap ErrInvalidTokenResponse.
func ParseTokenResponse(body []byte, requestedScopes []string, receivedAt time.Time) (*AccessToken, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTokenResponse, err)
	}

	token := &AccessToken{
		Scopes: slices.Clone(requestedScopes),
	}

	var err error
	if token.Value, err = requiredString(fields, fieldAccessToken); err != nil {
		return nil, err
	}
	if token.Type, err = requiredString(fields, fieldTokenType); err != nil {
		return nil, err
	}

	expiresIn := defaultExpiresIn
	if raw, ok := fields[fieldExpiresIn]; ok && !isNull(raw) {
		seconds, err := parseSeconds(raw)
		if err != nil {
			return nil, err
		}
		expiresIn = time.Duration(seconds) * time.Second
	}
	token.ExpiresAt = receivedAt.Add(expiresIn)

	if scope, err := optionalString(fields, fieldScope); err != nil {
		return nil, err
	} else if scope != "" {
		token.Scopes = strings.Fields(scope)
	}
	if token.RefreshToken, err = optionalString(fields, fieldRefreshToken); err != nil {
		return nil, err
	}

	for name, raw := range fields {
		switch name {
		case fieldAccessToken, fieldTokenType, fieldExpiresIn, fieldScope, fieldRefreshToken:
			continue
		}
		if token.AdditionalParameters == nil {
			token.AdditionalParameters = make(map[string]string)
		}
		token.AdditionalParameters[name] = verbatim(raw)
	}
	return token, nil
}

func requiredString(fields map[string]json.RawMessage, name string) (string, error) {
	v, err := optionalString(fields, name)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidTokenResponse, name)
	}
	return v, nil
}

func optionalString(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s is not a string", ErrInvalidTokenResponse, name)
	}
	return s, nil
}

// parseSeconds reads expires_in, clamped to [0, maxExpiresIn] seconds
func parseSeconds(raw json.RawMessage) (int64, error) {
	const maxSeconds = int64(maxExpiresIn / time.Second)
	text := strings.Trim(string(raw), `"`)
	if seconds, err := strconv.ParseInt(text, 10, 64); err == nil {
		return min(max(seconds, 0), maxSeconds), nil
	}
	// 3600.0 or 1e12
	if f, err := strconv.ParseFloat(text, 64); err == nil && !math.IsNaN(f) {
		return int64(min(max(f, 0), float64(maxSeconds))), nil
	}
	return 0, fmt.Errorf("%w: expires_in %s is not a number of seconds", ErrInvalidTokenResponse, string(raw))
}

// verbatim keeps strings unquoted and everything else as its JSON text
func verbatim(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
