package clients

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jrsteele09/go-obo-blueprints/oauth2"
)

const defaultAuthMethod = oauth2.AuthMethodBasic

// Registration is the static configuration of one OAuth2 client. It is loaded once at
// startup and never mutated afterwards; the registry hands out copies.
type Registration struct {
	// ID names the registration, e.g. "aad-obo". It is the key of the registrations file.
	ID string `yaml:"-" json:"id"`

	// Name is a human friendly label used in logs
	Name string `yaml:"name" json:"name"`

	// TokenURI is the token endpoint of the authorization server
	TokenURI string `yaml:"token_uri" json:"tokenUri"`

	ClientID     string `yaml:"client_id" json:"clientId"`
	ClientSecret string `yaml:"client_secret" json:"-"`

	// AuthMethod is basic, post or none. Defaults to basic.
	AuthMethod oauth2.AuthMethod `yaml:"authentication_method" json:"authenticationMethod"`

	GrantType oauth2.GrantType `yaml:"grant_type" json:"grantType"`

	// Scopes requested for the token. Must not be empty.
	Scopes []string `yaml:"scopes" json:"scopes"`

	// ResourceURL is the base URL of the API the token is meant for (optional)
	ResourceURL string `yaml:"resource_url" json:"resourceUrl,omitempty"`
}

// Scope returns the scopes space joined
func (r *Registration) Scope() string {
	return strings.Join(r.Scopes, " ")
}

// Validate checks everything a token request needs. Errors wrap oauth2.ErrConfiguration.
func (r *Registration) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: registration id is required", oauth2.ErrConfiguration)
	}
	if len(r.Scopes) == 0 {
		return fmt.Errorf("%w: scope must be set for client with registrationId=%s", oauth2.ErrConfiguration, r.ID)
	}
	if r.TokenURI == "" {
		return fmt.Errorf("%w: token_uri must be set for client with registrationId=%s", oauth2.ErrConfiguration, r.ID)
	}
	if r.ClientID == "" {
		return fmt.Errorf("%w: client_id must be set for client with registrationId=%s", oauth2.ErrConfiguration, r.ID)
	}
	if !r.GrantType.IsValid() {
		return fmt.Errorf("%w: unsupported grant type %q for client with registrationId=%s", oauth2.ErrConfiguration, r.GrantType, r.ID)
	}
	if !r.AuthMethod.IsValid() {
		return fmt.Errorf("%w: unsupported authentication method %q for client with registrationId=%s", oauth2.ErrConfiguration, r.AuthMethod, r.ID)
	}
	if r.AuthMethod != oauth2.AuthMethodNone && r.ClientSecret == "" {
		return fmt.Errorf("%w: client_secret must be set for %s authentication, registrationId=%s", oauth2.ErrConfiguration, r.AuthMethod, r.ID)
	}
	return nil
}

// Clone returns a deep copy
func (r *Registration) Clone() *Registration {
	c := *r
	c.Scopes = slices.Clone(r.Scopes)
	return &c
}

// String never includes the client secret
func (r *Registration) String() string {
	return fmt.Sprintf("Registration{ID: %s, ClientID: %s, GrantType: %s, AuthMethod: %s, Scopes: %v, TokenURI: %s}",
		r.ID, r.ClientID, r.GrantType.ShortName(), r.AuthMethod, r.Scopes, r.TokenURI)
}
