package clients_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-obo-blueprints/clients"
	"github.com/jrsteele09/go-obo-blueprints/oauth2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration() *clients.Registration {
	return &clients.Registration{
		ID:           "aad-obo",
		TokenURI:     "http://localhost:1111/oauth2/v2.0/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthMethod:   oauth2.AuthMethodBasic,
		GrantType:    oauth2.JWTBearerGrant,
		Scopes:       []string{"api://downstream/.default"},
	}
}

func TestRegistration_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(r *clients.Registration)
	}{
		{name: "missing id", modify: func(r *clients.Registration) { r.ID = "" }},
		{name: "missing scopes", modify: func(r *clients.Registration) { r.Scopes = nil }},
		{name: "missing token uri", modify: func(r *clients.Registration) { r.TokenURI = "" }},
		{name: "missing client id", modify: func(r *clients.Registration) { r.ClientID = "" }},
		{name: "unknown grant type", modify: func(r *clients.Registration) { r.GrantType = "password" }},
		{name: "unknown auth method", modify: func(r *clients.Registration) { r.AuthMethod = "jwt" }},
		{name: "basic without secret", modify: func(r *clients.Registration) { r.ClientSecret = "" }},
	}

	require.NoError(t, validRegistration().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := validRegistration()
			tt.modify(reg)
			assert.ErrorIs(t, reg.Validate(), oauth2.ErrConfiguration)
		})
	}

	public := validRegistration()
	public.AuthMethod = oauth2.AuthMethodNone
	public.ClientSecret = ""
	assert.NoError(t, public.Validate())
}

func TestRegistration_StringHidesSecret(t *testing.T) {
	assert.NotContains(t, validRegistration().String(), "client-secret")
}

func TestRegistry_FindReturnsCopies(t *testing.T) {
	registry, err := clients.NewRegistry(validRegistration())
	require.NoError(t, err)

	reg, ok := registry.Find("aad-obo")
	require.True(t, ok)
	reg.Scopes[0] = "mutated"

	again, ok := registry.Find("aad-obo")
	require.True(t, ok)
	assert.Equal(t, "api://downstream/.default", again.Scopes[0])

	_, ok = registry.Find("unknown")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicatesAndInvalid(t *testing.T) {
	_, err := clients.NewRegistry(validRegistration(), validRegistration())
	assert.Error(t, err)

	invalid := validRegistration()
	invalid.Scopes = []string{}
	_, err = clients.NewRegistry(invalid)
	assert.ErrorIs(t, err, oauth2.ErrConfiguration)
}

func TestRegistry_ListSorted(t *testing.T) {
	second := validRegistration()
	second.ID = "a-first"
	registry, err := clients.NewRegistry(validRegistration(), second)
	require.NoError(t, err)

	list := registry.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a-first", list[0].ID)
	assert.Equal(t, "aad-obo", list[1].ID)
}

func TestHTTPClients_For(t *testing.T) {
	hc := clients.NewHTTPClients([]*clients.Registration{validRegistration()}, 5*time.Second)

	assert.Equal(t, 5*time.Second, hc.For("aad-obo").Timeout)
	assert.NotSame(t, hc.For("aad-obo"), hc.For("other"))
	assert.NotNil(t, hc.For("other"))
}
