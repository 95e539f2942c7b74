package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	OAuthClientConfig
	DownstreamConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetRegistrationsFile() string
	GetMetricsEnabled() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	OAuthClient
	Downstream
	Store
}

func New() Config {
	return mainConfig{}
}

// MockServerConfig is read by cmd/mockserver only.
type MockServerConfig interface {
	GetAuthServerPort() string
	GetResourceServerPort() string
	GetIssuer() string
	GetTokenLifetime() time.Duration
	GetSigningKeyFile() string
	GetRegistrationsFile() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type mockConfig struct {
	EnvVars
	Mock
}

func NewMockServer() MockServerConfig {
	return mockConfig{}
}
