package oauth2

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	xoauth2 "golang.org/x/oauth2"
)

// AccessToken is the result of a successful token request. Tokens shared through a cache
// are handed out as clones, so a caller changing one never changes the cached entry.
type AccessToken struct {
	// Value is the opaque token string sent as "Authorization: Bearer <value>".
	// Security: never log this value, use String() instead
	Value string `json:"access_token"`

	// Type is the token_type returned by the server, normally "bearer".
	Type string `json:"token_type"`

	// ExpiresAt is the absolute expiry instant, computed from expires_in at receipt time.
	ExpiresAt time.Time `json:"expires_at"`

	// Scopes is the granted scope set. Order carries no meaning.
	Scopes []string `json:"scopes,omitempty"`

	// RefreshToken is optional; only authorization_code and some on-behalf-of responses carry one.
	RefreshToken string `json:"refresh_token,omitempty"`

	// AdditionalParameters keeps every response field outside the standard set, verbatim.
	AdditionalParameters map[string]string `json:"additional_parameters,omitempty"`
}

// Clone returns a deep copy
func (t *AccessToken) Clone() *AccessToken {
	if t == nil {
		return nil
	}
	c := *t
	c.Scopes = slices.Clone(t.Scopes)
	c.AdditionalParameters = maps.Clone(t.AdditionalParameters)
	return &c
}

// HasScope reports whether scope was granted
func (t *AccessToken) HasScope(scope string) bool {
	return slices.Contains(t.Scopes, scope)
}

// Scope returns the granted scopes space joined, the wire format of the scope parameter
func (t *AccessToken) Scope() string {
	return strings.Join(t.Scopes, " ")
}

// Parameter returns one additional parameter
func (t *AccessToken) Parameter(name string) (string, bool) {
	v, ok := t.AdditionalParameters[name]
	return v, ok
}

// ExpiresWithin reports whether the token expires at or before now+window.
// A token expiring exactly at the edge of the window counts as expiring.
func (t *AccessToken) ExpiresWithin(now time.Time, window time.Duration) bool {
	return !t.ExpiresAt.After(now.Add(window))
}

// Token converts to a golang.org/x/oauth2 token so it can feed an oauth2.Transport
func (t *AccessToken) Token() *xoauth2.Token {
	tok := &xoauth2.Token{
		AccessToken:  t.Value,
		TokenType:    TokenTypeBearer,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
	extra := map[string]any{ParamScope: t.Scope()}
	for k, v := range t.AdditionalParameters {
		extra[k] = v
	}
	return tok.WithExtra(extra)
}

// FromToken builds an AccessToken from a golang.org/x/oauth2 token. When the server
// sent no scope the requested scopes are assumed granted.
func FromToken(tok *xoauth2.Token, requestedScopes []string) *AccessToken {
	scopes := slices.Clone(requestedScopes)
	if s, ok := tok.Extra(ParamScope).(string); ok && s != "" {
		scopes = strings.Fields(s)
	}
	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = TokenTypeBearer
	}
	return &AccessToken{
		Value:        tok.AccessToken,
		Type:         tokenType,
		ExpiresAt:    tok.Expiry,
		Scopes:       scopes,
		RefreshToken: tok.RefreshToken,
	}
}

// String never includes the token values
func (t *AccessToken) String() string {
	return fmt.Sprintf("AccessToken{Type: %s, Value: [REDACTED], ExpiresAt: %s, Scopes: %v, RefreshToken: %t}",
		t.Type, t.ExpiresAt.Format(time.RFC3339), t.Scopes, t.RefreshToken != "")
}
