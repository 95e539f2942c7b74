package config

import "time"

type OAuthClientConfig interface {
	GetClockSkew() time.Duration
	GetTokenEndpointTimeout() time.Duration
	GetIssuer() string
	GetAudience() string
}

type OAuthClient struct{}

var _ OAuthClientConfig = OAuthClient{}

// GetClockSkew is how early a cached token is refreshed
func (OAuthClient) GetClockSkew() time.Duration {
	return GetDurationEnv("CLOCK_SKEW", 60*time.Second)
}

func (OAuthClient) GetTokenEndpointTimeout() time.Duration {
	return GetDurationEnv("TOKEN_ENDPOINT_TIMEOUT", 30*time.Second)
}

// GetIssuer is the issuer inbound bearer tokens are verified against
func (OAuthClient) GetIssuer() string {
	return GetEnv("OAUTH_ISSUER", "http://localhost:1111")
}

// GetAudience is this API's own client id, required in the aud claim of inbound tokens
func (OAuthClient) GetAudience() string {
	return GetEnv("OAUTH_AUDIENCE", "api-onbehalfof")
}
