package oauth2

import (
	"fmt"
	"strings"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
// It is the tag that selects how an authorized client obtains its token.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Used in: Login flows (handled outside this module)
	// Here: tokens obtained through a login can only be renewed with their refresh token
	AuthorizationCodeGrant GrantType = "authorization_code"

	// ClientCredentialsGrant allows machine-to-machine authentication.
	// Used in: Daemons and batch jobs calling an API with their own identity
	// Token request includes: client credentials, scope
	// Returns: access_token (no refresh_token or id_token)
	ClientCredentialsGrant GrantType = "client_credentials"

	// JWTBearerGrant exchanges a caller's access token for a token scoped to a downstream API.
	// Used in: On-behalf-of flows (Azure AD flavour, requested_token_use=on_behalf_of)
	// Token request includes: client credentials, scope, assertion, requested_token_use
	// Returns: access_token, optionally refresh_token
	JWTBearerGrant GrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// ShortName is used for log fields and metric labels
func (g GrantType) ShortName() string {
	if g == JWTBearerGrant {
		return "jwt-bearer"
	}
	return string(g)
}

func (g GrantType) IsValid() bool {
	switch g {
	case AuthorizationCodeGrant, ClientCredentialsGrant, JWTBearerGrant:
		return true
	}
	return false
}

// UnmarshalText accepts the full grant type URN as well as the short "jwt-bearer" form
func (g *GrantType) UnmarshalText(text []byte) error {
	v := GrantType(strings.TrimSpace(string(text)))
	if v == "jwt-bearer" {
		v = JWTBearerGrant
	}
	if !v.IsValid() {
		return fmt.Errorf("unsupported grant type %q", string(text))
	}
	*g = v
	return nil
}

// AuthMethod is how a client authenticates itself at the token endpoint.
type AuthMethod string

const (
	// AuthMethodBasic sends client_id:client_secret in an HTTP Basic Authorization header.
	// The credentials are not repeated in the request body.
	AuthMethodBasic AuthMethod = "basic"

	// AuthMethodPost sends client_id and client_secret as form parameters.
	AuthMethodPost AuthMethod = "post"

	// AuthMethodNone sends only client_id (public clients).
	AuthMethodNone AuthMethod = "none"
)

func (m AuthMethod) IsValid() bool {
	switch m {
	case AuthMethodBasic, AuthMethodPost, AuthMethodNone:
		return true
	}
	return false
}

// UnmarshalText accepts both the short names and the RFC 7591 names
// (client_secret_basic, client_secret_post)
func (m *AuthMethod) UnmarshalText(text []byte) error {
	v := AuthMethod(strings.TrimPrefix(strings.TrimSpace(string(text)), "client_secret_"))
	if v == "" {
		v = AuthMethodBasic
	}
	if !v.IsValid() {
		return fmt.Errorf("unsupported client authentication method %q", string(text))
	}
	*m = v
	return nil
}

// Token endpoint parameter names
const (
	ParamGrantType         = "grant_type"
	ParamClientID          = "client_id"
	ParamClientSecret      = "client_secret"
	ParamScope             = "scope"
	ParamAssertion         = "assertion"
	ParamRequestedTokenUse = "requested_token_use"
)

// RequestedTokenUseOnBehalfOf marks a jwt-bearer request as an on-behalf-of exchange
const RequestedTokenUseOnBehalfOf = "on_behalf_of"

// TokenTypeBearer is the only token type this module attaches to requests
const TokenTypeBearer = "Bearer"
