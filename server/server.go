// Package server is the middle-tier API: it accepts bearer tokens issued for this API and
// calls the downstream API with tokens obtained on behalf of the caller.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-obo-blueprints/authorizedclient"
	"github.com/jrsteele09/go-obo-blueprints/internal/config"
	"github.com/jrsteele09/go-obo-blueprints/server/router"
)

// TokenVerifier verifies inbound bearer tokens; *oidc.IDTokenVerifier satisfies it
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*oidc.IDToken, error)
}

var _ TokenVerifier = (*oidc.IDTokenVerifier)(nil)

// Downstream is the resource API called on behalf of the authenticated caller
type Downstream interface {
	Ping(ctx context.Context, principal authorizedclient.Principal) (string, error)
	TokenInfo(ctx context.Context, principal authorizedclient.Principal) (string, error)
}

type Server struct {
	*router.Router
	config         config.Config
	verifier       TokenVerifier
	downstream     Downstream
	metricsHandler http.Handler
}

type Option func(*Server)

// WithMetricsHandler exposes h on /metrics
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

func New(cfg config.Config, verifier TokenVerifier, downstream Downstream, opts ...Option) (*Server, error) {
	if verifier == nil {
		return nil, errors.New("[Server New] token verifier is required")
	}
	if downstream == nil {
		return nil, errors.New("[Server New] downstream client is required")
	}

	s := &Server{
		Router:     router.New(cfg.GetEnv()),
		config:     cfg,
		verifier:   verifier,
		downstream: downstream,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.initRoutes()
	s.LogRoutes()
	return s, nil
}

// NewOIDCVerifier discovers issuer and verifies tokens whose aud contains audience
func NewOIDCVerifier(ctx context.Context, issuer, audience string) (*oidc.IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("[NewOIDCVerifier] failed to create OIDC provider: %w", err)
	}
	return provider.Verifier(&oidc.Config{ClientID: audience}), nil
}
