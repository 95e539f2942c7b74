// Package tokenexchange performs the on-behalf-of (jwt-bearer) token exchange: a caller's
// access token is traded, together with this client's credentials, for a token scoped to a
// downstream API.
package tokenexchange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-obo-blueprints/clients"
	"github.com/jrsteele09/go-obo-blueprints/oauth2"
	"github.com/rs/zerolog/log"
)

const (
	// maxResponseBodySize is the maximum size for reading response bodies (1 MB)
	maxResponseBodySize = 1 << 20

	headerAccept      = "Accept"
	headerContentType = "Content-Type"

	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded; charset=UTF-8"
)

// Client exchanges assertions at a registration's token endpoint. Failures are
// never retried and no timeout is applied beyond the one of the injected *http.Client.
type Client struct {
	httpClients clients.HTTPClients
	now         func() time.Time
}

type Option func(*Client)

// WithHTTPClients sets the per-registration transports
func WithHTTPClients(httpClients clients.HTTPClients) Option {
	return func(c *Client) {
		c.httpClients = httpClients
	}
}

// WithNowTime overrides the clock used to turn expires_in into an instant
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Client) {
		c.now = nowFunc
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		httpClients: clients.HTTPClients{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exchange trades assertion for an access token scoped to the registration's scopes.
//
// Configuration problems (no scopes, no token endpoint) fail with oauth2.ErrConfiguration
// and an empty assertion with oauth2.ErrInvalidArgument, both before any request is sent.
// Every failure of the round trip itself is an *oauth2.TokenExchangeError.
func (c *Client) Exchange(ctx context.Context, reg *clients.Registration, assertion string) (*oauth2.AccessToken, error) {
	if err := validateExchange(reg, assertion); err != nil {
		return nil, err
	}

	req, err := createExchangeRequest(ctx, reg, assertion)
	if err != nil {
		return nil, err
	}

	log.Info().Str("registration", reg.ID).Str("token_endpoint", reg.TokenURI).Msg("requesting on-behalf-of token")

	status, body, err := executeExchangeRequest(c.httpClients.For(reg.ID), req)
	receivedAt := c.now()
	if err != nil {
		return nil, &oauth2.TokenExchangeError{Kind: oauth2.KindTransport, StatusCode: status, URI: reg.TokenURI, Err: err}
	}

	if status < 200 || status >= 300 {
		log.Error().Str("registration", reg.ID).Int("status", status).Str("body", string(body)).Msg("token endpoint rejected exchange")
		return nil, &oauth2.TokenExchangeError{Kind: oauth2.KindStatus, StatusCode: status, Body: string(body), URI: reg.TokenURI}
	}

	token, err := oauth2.ParseTokenResponse(body, reg.Scopes, receivedAt)
	if err != nil {
		log.Error().Str("registration", reg.ID).Err(err).Msg("unreadable token response")
		return nil, &oauth2.TokenExchangeError{Kind: oauth2.KindParse, StatusCode: status, Body: string(body), URI: reg.TokenURI, Err: err}
	}

	log.Debug().Str("registration", reg.ID).Time("expires_at", token.ExpiresAt).Strs("scopes", token.Scopes).Msg("received on-behalf-of token")
	return token, nil
}

func validateExchange(reg *clients.Registration, assertion string) error {
	if reg == nil {
		return fmt.Errorf("%w: registration is required", oauth2.ErrInvalidArgument)
	}
	if len(reg.Scopes) == 0 {
		return fmt.Errorf("%w: scope must be set for client with registrationId=%s", oauth2.ErrConfiguration, reg.ID)
	}
	if reg.TokenURI == "" {
		return fmt.Errorf("%w: token_uri must be set for client with registrationId=%s", oauth2.ErrConfiguration, reg.ID)
	}
	if strings.TrimSpace(assertion) == "" {
		return fmt.Errorf("%w: assertion cannot be empty", oauth2.ErrInvalidArgument)
	}
	return nil
}

// buildExchangeForm assembles the body fields in their fixed order
func buildExchangeForm(reg *clients.Registration, assertion string) form {
	f := form{}.add(oauth2.ParamGrantType, string(oauth2.JWTBearerGrant))
	if reg.AuthMethod != oauth2.AuthMethodBasic {
		f = f.add(oauth2.ParamClientID, reg.ClientID)
	}
	if reg.AuthMethod == oauth2.AuthMethodPost {
		f = f.add(oauth2.ParamClientSecret, reg.ClientSecret)
	}
	return f.
		add(oauth2.ParamScope, reg.Scope()).
		add(oauth2.ParamAssertion, assertion).
		add(oauth2.ParamRequestedTokenUse, oauth2.RequestedTokenUseOnBehalfOf)
}

func createExchangeRequest(ctx context.Context, reg *clients.Registration, assertion string) (*http.Request, error) {
	body := buildExchangeForm(reg, assertion).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reg.TokenURI, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token_uri for client with registrationId=%s: %v", oauth2.ErrConfiguration, reg.ID, err)
	}
	req.Header.Set(headerAccept, contentTypeJSON)
	req.Header.Set(headerContentType, contentTypeForm)
	if reg.AuthMethod == oauth2.AuthMethodBasic {
		req.SetBasicAuth(reg.ClientID, reg.ClientSecret)
	}
	return req, nil
}

// executeExchangeRequest returns the status and at most maxResponseBodySize bytes of body
func executeExchangeRequest(client *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read token response: %w", err)
	}
	return resp.StatusCode, body, nil
}
