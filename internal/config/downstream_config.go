package config

type DownstreamConfig interface {
	GetDownstreamURL() string
	GetDownstreamRegistrationID() string
}

type Downstream struct{}

var _ DownstreamConfig = Downstream{}

func (Downstream) GetDownstreamURL() string {
	return GetEnv("DOWNSTREAM_RESOURCE_URL", "http://localhost:2222/api")
}

func (Downstream) GetDownstreamRegistrationID() string {
	return GetEnv("DOWNSTREAM_REGISTRATION_ID", "aad-obo")
}
