// Package authorizedclient hands out access tokens for (client registration, principal)
// pairs, serving them from a cache until they are about to expire.
package authorizedclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-obo-blueprints/clients"
	"github.com/jrsteele09/go-obo-blueprints/internal/metrics"
	"github.com/jrsteele09/go-obo-blueprints/oauth2"
	"github.com/jrsteele09/go-obo-blueprints/tokenexchange"
	"github.com/rs/zerolog/log"
	xoauth2 "golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// DefaultClockSkew is how long before its expiry a cached token is refreshed
const DefaultClockSkew = 60 * time.Second

// Exchanger performs the on-behalf-of exchange for jwt-bearer registrations
type Exchanger interface {
	Exchange(ctx context.Context, reg *clients.Registration, assertion string) (*oauth2.AccessToken, error)
}

var _ Exchanger = (*tokenexchange.Client)(nil)

// Provider returns currently valid access tokens, acquiring new ones through the
// registration's grant type when the cached one is missing or about to expire.
//
// Concurrent cache misses for the same key are collapsed: one caller talks to the
// token endpoint and the others receive its result.
type Provider struct {
	registrations clients.Repo
	exchanger     Exchanger
	httpClients   clients.HTTPClients
	store         Store
	metrics       *metrics.Metrics
	now           func() time.Time
	clockSkew     time.Duration
	group         singleflight.Group
}

type Option func(*Provider)

// WithNowTime overrides the clock used for expiry checks
func WithNowTime(nowFunc func() time.Time) Option {
	return func(p *Provider) {
		p.now = nowFunc
	}
}

// WithClockSkew sets how early tokens are refreshed. Must not be negative.
func WithClockSkew(skew time.Duration) Option {
	return func(p *Provider) {
		p.clockSkew = skew
	}
}

func WithStore(store Store) Option {
	return func(p *Provider) {
		p.store = store
	}
}

// WithHTTPClients sets the per-registration transports used for every grant type
func WithHTTPClients(httpClients clients.HTTPClients) Option {
	return func(p *Provider) {
		p.httpClients = httpClients
	}
}

// WithExchanger replaces the default tokenexchange.Client
func WithExchanger(exchanger Exchanger) Option {
	return func(p *Provider) {
		p.exchanger = exchanger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Provider) {
		p.metrics = m
	}
}

func NewProvider(registrations clients.Repo, opts ...Option) (*Provider, error) {
	if registrations == nil {
		return nil, errors.New("[NewProvider] registrations repo is required")
	}

	p := &Provider{
		registrations: registrations,
		httpClients:   clients.HTTPClients{},
		store:         NewMemoryStore(),
		now:           time.Now,
		clockSkew:     DefaultClockSkew,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.clockSkew < 0 {
		return nil, fmt.Errorf("[NewProvider] clock skew must be >= 0, got %s", p.clockSkew)
	}
	if p.store == nil {
		return nil, errors.New("[NewProvider] store is required")
	}
	if p.exchanger == nil {
		p.exchanger = tokenexchange.New(
			tokenexchange.WithHTTPClients(p.httpClients),
			tokenexchange.WithNowTime(p.now),
		)
	}
	return p, nil
}

// Authorize returns a valid access token for registrationID on behalf of principal.
//
// Errors:
//   - oauth2.ErrUnknownClient when the registration does not exist
//   - oauth2.ErrNoAuthenticatedPrincipal when a jwt-bearer exchange has no assertion
//   - oauth2.ErrAuthorizationRequired when an authorization_code token cannot be refreshed
//   - *oauth2.AuthorizationFailedError wrapping the cause when acquisition failed;
//     the cached entry is then left untouched
func (p *Provider) Authorize(ctx context.Context, registrationID string, principal Principal) (*oauth2.AccessToken, error) {
	reg, ok := p.registrations.Find(registrationID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", oauth2.ErrUnknownClient, registrationID)
	}
	if principal == nil {
		return nil, fmt.Errorf("%w: principal is required", oauth2.ErrNoAuthenticatedPrincipal)
	}

	key := Key{RegistrationID: reg.ID, PrincipalName: principal.Name()}
	if cached, ok := p.valid(ctx, key); ok {
		p.metrics.Hit()
		return cached.AccessToken.Clone(), nil
	}

	// the exchange is shared, so one waiter giving up must not cancel it for the others
	shared := context.WithoutCancel(ctx)
	result := p.group.DoChan(key.String(), func() (any, error) {
		// a concurrent caller may have refreshed while this one waited
		previous, ok := p.valid(shared, key)
		if ok {
			return previous.AccessToken, nil
		}
		p.metrics.Miss()
		return p.refresh(shared, reg, principal, previous)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-result:
		if r.Err != nil {
			return nil, r.Err
		}
		// every waiter of the flight gets its own copy
		return r.Val.(*oauth2.AccessToken).Clone(), nil
	}
}

// Put stores a token obtained elsewhere, e.g. by a login flow for an authorization_code registration
func (p *Provider) Put(ctx context.Context, registrationID string, principal Principal, token *oauth2.AccessToken) error {
	if _, ok := p.registrations.Find(registrationID); !ok {
		return fmt.Errorf("%w: %q", oauth2.ErrUnknownClient, registrationID)
	}
	return p.store.Save(ctx, &AuthorizedClient{
		RegistrationID: registrationID,
		PrincipalName:  principal.Name(),
		AccessToken:    token.Clone(),
	})
}

// Remove evicts the cached token of registrationID for principal
func (p *Provider) Remove(ctx context.Context, registrationID string, principal Principal) error {
	return p.store.Remove(ctx, Key{RegistrationID: registrationID, PrincipalName: principal.Name()})
}

// TokenSource adapts Authorize to golang.org/x/oauth2, e.g. for oauth2.Transport
func (p *Provider) TokenSource(ctx context.Context, registrationID string, principal Principal) xoauth2.TokenSource {
	return &tokenSource{ctx: ctx, provider: p, registrationID: registrationID, principal: principal}
}

type tokenSource struct {
	ctx            context.Context
	provider       *Provider
	registrationID string
	principal      Principal
}

func (s *tokenSource) Token() (*xoauth2.Token, error) {
	token, err := s.provider.Authorize(s.ctx, s.registrationID, s.principal)
	if err != nil {
		return nil, err
	}
	return token.Token(), nil
}

// valid loads the cached entry and reports whether its token can still be served.
// The entry is returned either way so an authorization_code refresh can use it.
// A token is refreshed clockSkew before its nominal expiry.
func (p *Provider) valid(ctx context.Context, key Key) (*AuthorizedClient, bool) {
	cached, err := p.store.Load(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("registration", key.RegistrationID).Msg("authorized client store load failed, acquiring a new token")
		return nil, false
	}
	if !cached.hasExpiry() {
		return cached, false
	}
	return cached, !cached.AccessToken.ExpiresWithin(p.now(), p.clockSkew)
}

func (p *Provider) refresh(ctx context.Context, reg *clients.Registration, principal Principal, previous *AuthorizedClient) (*oauth2.AccessToken, error) {
	logger := log.With().Str("registration", reg.ID).Str("grant_type", reg.GrantType.ShortName()).Str("principal", principal.Name()).Logger()

	started := time.Now()
	token, err := p.acquire(ctx, acquisition{reg: reg, principal: principal, previous: previous})
	if errors.Is(err, oauth2.ErrNoAuthenticatedPrincipal) || errors.Is(err, oauth2.ErrAuthorizationRequired) {
		return nil, err
	}
	p.metrics.Acquired(reg.ID, reg.GrantType.ShortName(), started, err)
	if err != nil {
		logger.Error().Err(err).Msg("token acquisition failed")
		return nil, &oauth2.AuthorizationFailedError{RegistrationID: reg.ID, Principal: principal.Name(), Err: err}
	}

	authorized := &AuthorizedClient{RegistrationID: reg.ID, PrincipalName: principal.Name(), AccessToken: token}
	if err := p.store.Save(ctx, authorized); err != nil {
		logger.Warn().Err(err).Msg("authorized client not cached")
	}
	logger.Debug().Time("expires_at", token.ExpiresAt).Msg("token acquired")
	return token, nil
}
