package oauth2_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-obo-blueprints/oauth2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const downstreamScope = "api://a1fd9dc1-2590-4e10-86a1-bc611c96dc17/.default"

var receivedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestParseTokenResponse_ExpiresInAsString(t *testing.T) {
	body := `{
		"access_token": "access-token-1234",
		"token_type": "bearer",
		"expires_in": "3600",
		"scope": "` + downstreamScope + `",
		"custom_parameter_1": "custom-value-1",
		"custom_parameter_2": "custom-value-2"
	}`

	token, err := oauth2.ParseTokenResponse([]byte(body), []string{"ignored"}, receivedAt)
	require.NoError(t, err)

	assert.Equal(t, "access-token-1234", token.Value)
	assert.Equal(t, "bearer", token.Type)
	assert.Equal(t, receivedAt.Add(time.Hour), token.ExpiresAt)
	assert.Equal(t, []string{downstreamScope}, token.Scopes)
	assert.Empty(t, token.RefreshToken)
	assert.Equal(t, map[string]string{
		"custom_parameter_1": "custom-value-1",
		"custom_parameter_2": "custom-value-2",
	}, token.AdditionalParameters)
}

func TestParseTokenResponse_ExpiresInAsNumber(t *testing.T) {
	body := `{"access_token":"a","token_type":"Bearer","expires_in":3600,"refresh_token":"r"}`

	token, err := oauth2.ParseTokenResponse([]byte(body), []string{"scope-a", "scope-b"}, receivedAt)
	require.NoError(t, err)

	assert.Equal(t, receivedAt.Add(3600*time.Second), token.ExpiresAt)
	assert.Equal(t, "r", token.RefreshToken)
	assert.Nil(t, token.AdditionalParameters)
}

func TestParseTokenResponse_ScopeInheritsRequested(t *testing.T) {
	requested := []string{"scope-a", "scope-b"}
	token, err := oauth2.ParseTokenResponse([]byte(`{"access_token":"a","token_type":"bearer","expires_in":60}`), requested, receivedAt)
	require.NoError(t, err)

	assert.ElementsMatch(t, requested, token.Scopes)

	// the token owns its scopes
	requested[0] = "changed"
	assert.Equal(t, "scope-a", token.Scopes[0])
}

func TestParseTokenResponse_MissingExpiresIn(t *testing.T) {
	token, err := oauth2.ParseTokenResponse([]byte(`{"access_token":"a","token_type":"bearer"}`), nil, receivedAt)
	require.NoError(t, err)

	assert.False(t, token.ExpiresAt.IsZero(), "expiry must always be known")
	assert.Equal(t, receivedAt.Add(time.Second), token.ExpiresAt)
}

func TestParseTokenResponse_ExpiresInOutOfRange(t *testing.T) {
	tenYears := receivedAt.Add(10 * 365 * 24 * time.Hour)

	tests := []struct {
		name      string
		expiresIn string
		want      time.Time
	}{
		{name: "integer beyond duration range", expiresIn: `10000000000`, want: tenYears},
		{name: "string beyond duration range", expiresIn: `"10000000000"`, want: tenYears},
		{name: "huge float", expiresIn: `1e300`, want: tenYears},
		{name: "negative", expiresIn: `-5`, want: receivedAt},
		{name: "fractional", expiresIn: `3600.0`, want: receivedAt.Add(time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"access_token":"a","token_type":"bearer","expires_in":` + tt.expiresIn + `}`
			token, err := oauth2.ParseTokenResponse([]byte(body), nil, receivedAt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, token.ExpiresAt)
		})
	}
}

func TestParseTokenResponse_NonStringAdditionalParameters(t *testing.T) {
	body := `{"access_token":"a","token_type":"bearer","expires_in":1,"ext_expires_in":3600,"nested":{"k":"v"},"flag":true}`

	token, err := oauth2.ParseTokenResponse([]byte(body), nil, receivedAt)
	require.NoError(t, err)

	assert.Equal(t, "3600", token.AdditionalParameters["ext_expires_in"])
	assert.Equal(t, `{"k":"v"}`, token.AdditionalParameters["nested"])
	assert.Equal(t, "true", token.AdditionalParameters["flag"])
}

func TestParseTokenResponse_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"access_token":`},
		{name: "not an object", body: `["access_token"]`},
		{name: "empty body", body: ``},
		{name: "missing access_token", body: `{"token_type":"bearer"}`},
		{name: "missing token_type", body: `{"access_token":"a"}`},
		{name: "access_token not a string", body: `{"access_token":1,"token_type":"bearer"}`},
		{name: "expires_in not numeric", body: `{"access_token":"a","token_type":"bearer","expires_in":"soon"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := oauth2.ParseTokenResponse([]byte(tt.body), nil, receivedAt)
			require.Error(t, err)
			assert.ErrorIs(t, err, oauth2.ErrInvalidTokenResponse)
		})
	}
}
