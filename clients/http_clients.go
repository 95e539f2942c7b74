package clients

import (
	"net/http"
	"time"
)

// HTTPClients binds one *http.Client to each registration id. It is built by the
// composition root and shared by everything that talks to a token endpoint or resource.
type HTTPClients map[string]*http.Client

// NewHTTPClients creates a client with the given timeout for every registration
func NewHTTPClients(registrations []*Registration, timeout time.Duration) HTTPClients {
	h := make(HTTPClients, len(registrations))
	for _, reg := range registrations {
		h[reg.ID] = &http.Client{Timeout: timeout}
	}
	return h
}

// For returns the client bound to id, or http.DefaultClient
func (h HTTPClients) For(id string) *http.Client {
	if c, ok := h[id]; ok && c != nil {
		return c
	}
	return http.DefaultClient
}
