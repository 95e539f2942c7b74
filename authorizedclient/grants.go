package authorizedclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-obo-blueprints/clients"
	"github.com/jrsteele09/go-obo-blueprints/oauth2"
	xoauth2 "golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// acquisition is the input shared by every grant type
type acquisition struct {
	reg       *clients.Registration
	principal Principal
	previous  *AuthorizedClient
}

// acquire dispatches on the registration's grant type
func (p *Provider) acquire(ctx context.Context, a acquisition) (*oauth2.AccessToken, error) {
	switch a.reg.GrantType {
	case oauth2.JWTBearerGrant:
		return p.acquireJWTBearer(ctx, a)
	case oauth2.ClientCredentialsGrant:
		return p.acquireClientCredentials(ctx, a)
	case oauth2.AuthorizationCodeGrant:
		return p.acquireAuthorizationCode(ctx, a)
	}
	return nil, fmt.Errorf("%w: unsupported grant type %q for client with registrationId=%s", oauth2.ErrConfiguration, a.reg.GrantType, a.reg.ID)
}

func (p *Provider) acquireJWTBearer(ctx context.Context, a acquisition) (*oauth2.AccessToken, error) {
	assertion, ok := a.principal.Assertion()
	if !ok {
		return nil, fmt.Errorf("%w: no assertion found for %q", oauth2.ErrNoAuthenticatedPrincipal, a.principal.Name())
	}
	return p.exchanger.Exchange(ctx, a.reg, assertion)
}

func (p *Provider) acquireClientCredentials(ctx context.Context, a acquisition) (*oauth2.AccessToken, error) {
	cfg := clientcredentials.Config{
		ClientID:     a.reg.ClientID,
		ClientSecret: a.reg.ClientSecret,
		TokenURL:     a.reg.TokenURI,
		Scopes:       a.reg.Scopes,
		AuthStyle:    authStyle(a.reg.AuthMethod),
	}
	tok, err := cfg.Token(p.httpContext(ctx, a.reg))
	if err != nil {
		return nil, p.retrieveError(a.reg, err)
	}
	return p.fromToken(tok, a.reg), nil
}

// acquireAuthorizationCode can only renew: the initial token comes from a login flow via Put
func (p *Provider) acquireAuthorizationCode(ctx context.Context, a acquisition) (*oauth2.AccessToken, error) {
	if a.previous == nil || a.previous.AccessToken == nil || a.previous.AccessToken.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token for client with registrationId=%s", oauth2.ErrAuthorizationRequired, a.reg.ID)
	}
	cfg := xoauth2.Config{
		ClientID:     a.reg.ClientID,
		ClientSecret: a.reg.ClientSecret,
		Scopes:       a.reg.Scopes,
		Endpoint: xoauth2.Endpoint{
			TokenURL:  a.reg.TokenURI,
			AuthStyle: authStyle(a.reg.AuthMethod),
		},
	}
	// an expired token forces the source to use the refresh token
	expired := &xoauth2.Token{RefreshToken: a.previous.AccessToken.RefreshToken}
	tok, err := cfg.TokenSource(p.httpContext(ctx, a.reg), expired).Token()
	if err != nil {
		return nil, p.retrieveError(a.reg, err)
	}
	return p.fromToken(tok, a.reg), nil
}

func (p *Provider) httpContext(ctx context.Context, reg *clients.Registration) context.Context {
	return context.WithValue(ctx, xoauth2.HTTPClient, p.httpClients.For(reg.ID))
}

// fromToken keeps the invariant that cached tokens always carry an expiry
func (p *Provider) fromToken(tok *xoauth2.Token, reg *clients.Registration) *oauth2.AccessToken {
	token := oauth2.FromToken(tok, reg.Scopes)
	if token.ExpiresAt.IsZero() {
		token.ExpiresAt = p.now().Add(time.Second)
	}
	return token
}

// retrieveError maps golang.org/x/oauth2 errors onto the exchange error type
func (p *Provider) retrieveError(reg *clients.Registration, err error) error {
	var re *xoauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &oauth2.TokenExchangeError{Kind: oauth2.KindStatus, StatusCode: re.Response.StatusCode, Body: string(re.Body), URI: reg.TokenURI, Err: err}
	}
	return &oauth2.TokenExchangeError{Kind: oauth2.KindTransport, URI: reg.TokenURI, Err: err}
}

func authStyle(method oauth2.AuthMethod) xoauth2.AuthStyle {
	if method == oauth2.AuthMethodBasic {
		return xoauth2.AuthStyleInHeader
	}
	return xoauth2.AuthStyleInParams
}
