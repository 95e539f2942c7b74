// Package downstream calls the downstream resource API with a token obtained on behalf of
// the current principal.
package downstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-obo-blueprints/authorizedclient"
	"github.com/rs/zerolog/log"
	xoauth2 "golang.org/x/oauth2"
)

const (
	maxResponseBytes = 1 << 20
	defaultTimeout   = 30 * time.Second
)

// TokenSources hands out token sources per registration and principal
type TokenSources interface {
	TokenSource(ctx context.Context, registrationID string, principal authorizedclient.Principal) xoauth2.TokenSource
}

var _ TokenSources = (*authorizedclient.Provider)(nil)

// Error is returned when the downstream API answers with a non-2xx status
type Error struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *Error) Error() string {
	return fmt.Sprintf("downstream %s returned status %d", e.URL, e.StatusCode)
}

type Client struct {
	url            string
	registrationID string
	tokens         TokenSources
	base           http.RoundTripper
	timeout        time.Duration
}

type Option func(*Client)

// WithHTTPClient calls the resource through the transport and timeout of client, normally
// the client bound to the registration in clients.HTTPClients
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client == nil {
			return
		}
		if client.Transport != nil {
			c.base = client.Transport
		}
		c.timeout = client.Timeout
	}
}

func New(url, registrationID string, tokens TokenSources, opts ...Option) *Client {
	c := &Client{
		url:            strings.TrimSuffix(url, "/"),
		registrationID: registrationID,
		tokens:         tokens,
		base:           http.DefaultTransport,
		timeout:        defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping calls the resource root and returns the response body unchanged
func (c *Client) Ping(ctx context.Context, principal authorizedclient.Principal) (string, error) {
	return c.get(ctx, principal, c.url)
}

// TokenInfo returns the downstream view of the token it received
func (c *Client) TokenInfo(ctx context.Context, principal authorizedclient.Principal) (string, error) {
	return c.get(ctx, principal, c.url+"/tokeninfo")
}

func (c *Client) get(ctx context.Context, principal authorizedclient.Principal, url string) (string, error) {
	httpClient := &http.Client{
		Transport: &xoauth2.Transport{
			Source: c.tokens.TokenSource(ctx, c.registrationID, principal),
			Base:   c.base,
		},
		Timeout: c.timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("[Client.get] %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("[Client.get] request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("[Client.get] failed to read response from %s: %w", url, err)
	}

	log.Debug().Str("url", url).Int("status", resp.StatusCode).Str("principal", principal.Name()).Msg("downstream call")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{StatusCode: resp.StatusCode, Body: string(body), URL: url}
	}
	return string(body), nil
}
