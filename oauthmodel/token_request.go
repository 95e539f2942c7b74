package oauthmodel

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-obo-blueprints/internal/errors"
	"github.com/jrsteele09/go-obo-blueprints/oauth2"
)

// TokenRequest holds parameters for the OAuth2 token request.
// This represents the request body sent to the /token endpoint.
// Supports the grant types a middle tier and a daemon need: client_credentials and
// the jwt-bearer on-behalf-of exchange.
type TokenRequest struct {
	// GrantType selects the flow.
	// Required: Yes
	// Example: "client_credentials" or "urn:ietf:params:oauth:grant-type:jwt-bearer"
	GrantType oauth2.GrantType

	// ClientID identifies the OAuth2 client making the request.
	// Required: Yes, either in the body or as the Basic auth username
	// Example: "api-onbehalfof"
	ClientID string

	// ClientSecret is the secret credential for confidential clients.
	// Required: Yes
	// Security: Never log or expose this value
	ClientSecret string

	// AuthMethod records how the client authenticated: basic, post or none
	AuthMethod oauth2.AuthMethod

	// Scopes are the requested scopes, space separated on the wire.
	// Required: Yes
	// Example: "api://downstream/.default"
	Scopes []string

	// Assertion is the caller's access token being exchanged.
	// Required: Yes (only for the jwt-bearer grant)
	Assertion string

	// RequestedTokenUse must be "on_behalf_of" for the jwt-bearer grant.
	// Required: Yes (only for the jwt-bearer grant)
	RequestedTokenUse string
}

// ParseTokenRequest reads a form encoded token request. Client credentials are taken from
// the Basic Authorization header when present, else from the body.
func ParseTokenRequest(r *http.Request) (*TokenRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "malformed form body")
	}

	req := &TokenRequest{
		GrantType:         oauth2.GrantType(r.PostForm.Get(oauth2.ParamGrantType)),
		Scopes:            strings.Fields(r.PostForm.Get(oauth2.ParamScope)),
		Assertion:         r.PostForm.Get(oauth2.ParamAssertion),
		RequestedTokenUse: r.PostForm.Get(oauth2.ParamRequestedTokenUse),
	}

	if user, pass, ok := r.BasicAuth(); ok {
		// RFC 6749 section 2.3.1: credentials are form encoded before base64
		req.ClientID = unescape(user)
		req.ClientSecret = unescape(pass)
		req.AuthMethod = oauth2.AuthMethodBasic
		if id := r.PostForm.Get(oauth2.ParamClientID); id != "" && id != req.ClientID {
			return nil, errors.Wrapf(errors.ErrInvalidRequest, "client_id in body does not match Authorization header")
		}
	} else {
		req.ClientID = r.PostForm.Get(oauth2.ParamClientID)
		req.ClientSecret = r.PostForm.Get(oauth2.ParamClientSecret)
		req.AuthMethod = oauth2.AuthMethodPost
		if req.ClientSecret == "" {
			req.AuthMethod = oauth2.AuthMethodNone
		}
	}
	return req, nil
}

// Validate checks the parameters required by the grant type
func (r *TokenRequest) Validate() error {
	if r.ClientID == "" {
		return errors.Wrapf(errors.ErrInvalidClient, "client_id is required")
	}
	if len(r.Scopes) == 0 {
		return errors.Wrapf(errors.ErrInvalidScope, "scope is required")
	}

	switch r.GrantType {
	case oauth2.ClientCredentialsGrant:
		return nil
	case oauth2.JWTBearerGrant:
		if r.Assertion == "" {
			return errors.Wrapf(errors.ErrInvalidRequest, "assertion is required")
		}
		if r.RequestedTokenUse != oauth2.RequestedTokenUseOnBehalfOf {
			return errors.Wrapf(errors.ErrInvalidRequest, "requested_token_use must be %s", oauth2.RequestedTokenUseOnBehalfOf)
		}
		return nil
	case "":
		return errors.Wrapf(errors.ErrInvalidRequest, "grant_type is required")
	}
	return errors.Wrapf(errors.ErrUnsupportedGrantType, "%s", r.GrantType)
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}
