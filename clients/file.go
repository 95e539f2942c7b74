package clients

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// File is the layout of the registrations file:
//
//	registrations:
//	  aad-obo:
//	    token_uri: https://login.microsoftonline.com/<tenant>/oauth2/v2.0/token
//	    client_id: ${AZURE_APP_CLIENT_ID}
//	    client_secret: ${AZURE_APP_CLIENT_SECRET}
//	    authentication_method: basic
//	    grant_type: jwt-bearer
//	    scopes: ["api://<downstream>/.default"]
type File struct {
	Registrations map[string]*Registration `yaml:"registrations"`
}

// LoadFile reads a registrations file, expanding ${VAR} references from the environment
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[LoadFile] failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// envReference matches ${VAR}. A bare $ is kept as written, secrets may contain one.
var envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with the environment value of VAR
func expandEnv(data string) string {
	return envReference.ReplaceAllStringFunc(data, func(ref string) string {
		return os.Getenv(envReference.FindStringSubmatch(ref)[1])
	})
}

// Parse decodes registrations YAML. Unknown keys are rejected.
func Parse(data []byte) (*Registry, error) {
	expanded := expandEnv(string(data))

	var f File
	decoder := yaml.NewDecoder(bytes.NewBufferString(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("[Parse] invalid registrations file: %w", err)
	}

	registry, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	for id, reg := range f.Registrations {
		if reg == nil {
			reg = &Registration{}
		}
		reg.ID = id
		if reg.AuthMethod == "" {
			reg.AuthMethod = defaultAuthMethod
		}
		if err := registry.Add(reg); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
