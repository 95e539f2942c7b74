package config

import "time"

type Mock struct{}

func (Mock) GetAuthServerPort() string {
	return listenAddress(GetEnv("MOCK_AUTH_SERVER_PORT", "1111"))
}

func (Mock) GetResourceServerPort() string {
	return listenAddress(GetEnv("MOCK_RESOURCE_SERVER_PORT", "2222"))
}

// GetIssuer is the iss claim and discovery base of the mock authorization server
func (Mock) GetIssuer() string {
	return GetEnv("MOCK_ISSUER", "http://localhost:1111")
}

func (Mock) GetTokenLifetime() time.Duration {
	return GetDurationEnv("MOCK_TOKEN_LIFETIME", time.Hour)
}

// GetSigningKeyFile is a PEM file the signing key is kept in across restarts. Empty means
// a new key on every start.
func (Mock) GetSigningKeyFile() string {
	return GetEnv("MOCK_SIGNING_KEY_FILE", "")
}
