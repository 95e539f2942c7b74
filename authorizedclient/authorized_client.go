package authorizedclient

import (
	"net/url"

	"github.com/jrsteele09/go-obo-blueprints/oauth2"
)

// Key identifies an authorized client: one registration used on behalf of one principal
type Key struct {
	RegistrationID string
	PrincipalName  string
}

// String is unambiguous for any registration id and principal name
func (k Key) String() string {
	return url.QueryEscape(k.RegistrationID) + ":" + url.QueryEscape(k.PrincipalName)
}

// AuthorizedClient associates a registration and principal with the most recently
// obtained access token. Entries are replaced on refresh, never mutated.
type AuthorizedClient struct {
	RegistrationID string              `json:"registrationId"`
	PrincipalName  string              `json:"principalName"`
	AccessToken    *oauth2.AccessToken `json:"accessToken"`
}

func (c *AuthorizedClient) Key() Key {
	return Key{RegistrationID: c.RegistrationID, PrincipalName: c.PrincipalName}
}

// hasExpiry reports whether the entry can be cached: the cache must always know when
// the token it holds expires
func (c *AuthorizedClient) hasExpiry() bool {
	return c != nil && c.AccessToken != nil && !c.AccessToken.ExpiresAt.IsZero()
}
