// Package mockserver provides a local stand-in for Azure AD and for the downstream resource
// API, so the on-behalf-of flow can be run and tested without a real tenant.
package mockserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-obo-blueprints/clients"
	apperrors "github.com/jrsteele09/go-obo-blueprints/internal/errors"
	"github.com/jrsteele09/go-obo-blueprints/oauth2"
	"github.com/jrsteele09/go-obo-blueprints/oauthmodel"
	"github.com/jrsteele09/go-obo-blueprints/server/router"
	"github.com/jrsteele09/go-obo-blueprints/token/jwt"
	"github.com/jrsteele09/go-obo-blueprints/token/keys"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	RouteWellKnownOpenIDConfig = "/.well-known/openid-configuration"
	RouteWellKnownJWKS         = "/.well-known/jwks.json"
	RouteToken                 = "/oauth2/v2.0/token"
	RouteUserToken             = "/mock/user-token"
)

// registeredClient is a confidential client known to the mock authorization server.
// Only a hash of the secret is kept.
type registeredClient struct {
	id         string
	secretHash []byte
	authMethod oauth2.AuthMethod
}

// AuthServer issues Azure AD v2.0 shaped tokens for client_credentials and on-behalf-of requests
type AuthServer struct {
	*router.Router
	issuer     string
	signer     keys.Signer
	creator    *jwt.Creator
	verifier   *jwt.Verifier
	clients    map[string]*registeredClient
	bcryptCost int
	now        func() time.Time
}

type Option func(*AuthServer)

func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *AuthServer) {
		s.now = nowFunc
	}
}

// WithBcryptCost lowers the secret hashing cost, for tests
func WithBcryptCost(cost int) Option {
	return func(s *AuthServer) {
		s.bcryptCost = cost
	}
}

// NewAuthServer accepts the clients of registrations, authenticated with the registration's
// auth method. Registrations sharing a client id must agree on its secret.
func NewAuthServer(env, issuer string, lifetime time.Duration, keyPair *keys.KeyPair, registrations []*clients.Registration, opts ...Option) (*AuthServer, error) {
	s := &AuthServer{
		Router:     router.New(env),
		issuer:     issuer,
		signer:     keys.NewKeyPairSigner(keyPair),
		clients:    make(map[string]*registeredClient),
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	creator, err := jwt.NewCreator(issuer, lifetime, s.signer, jwt.WithNowTime(s.now))
	if err != nil {
		return nil, fmt.Errorf("[NewAuthServer] %w", err)
	}
	s.creator = creator
	s.verifier = jwt.NewVerifier(issuer, s.signer, s.now)

	for _, reg := range registrations {
		if err := s.addClient(reg); err != nil {
			return nil, fmt.Errorf("[NewAuthServer] %w", err)
		}
	}

	s.initRoutes()
	return s, nil
}

func (s *AuthServer) addClient(reg *clients.Registration) error {
	if existing, ok := s.clients[reg.ClientID]; ok {
		if bcrypt.CompareHashAndPassword(existing.secretHash, []byte(reg.ClientSecret)) != nil {
			return fmt.Errorf("client %s registered with different secrets", reg.ClientID)
		}
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.ClientSecret), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash secret of client %s: %w", reg.ClientID, err)
	}
	s.clients[reg.ClientID] = &registeredClient{id: reg.ClientID, secretHash: hash, authMethod: reg.AuthMethod}
	return nil
}

func (s *AuthServer) initRoutes() {
	mw := []router.Middleware{s.LoggingMiddleware, s.RecoverMiddleware}
	s.RegisterRouteFunc("GET "+RouteWellKnownOpenIDConfig, router.ChainMiddleware(s.WellKnownOpenIDConfig(), mw...))
	s.RegisterRouteFunc("GET "+RouteWellKnownJWKS, router.ChainMiddleware(s.JWKS(), mw...))
	s.RegisterRouteFunc("POST "+RouteToken, router.ChainMiddleware(s.Token(), mw...))
	s.RegisterRouteFunc("POST "+RouteUserToken, router.ChainMiddleware(s.UserToken(), mw...))
}

// Issuer is the iss claim of every token and the base of the discovery document
func (s *AuthServer) Issuer() string {
	return s.issuer
}

// WellKnownOpenIDConfig serves the OIDC discovery document
func (s *AuthServer) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		router.WriteJSON(w, http.StatusOK, map[string]any{
			"issuer":                                s.issuer,
			"token_endpoint":                        s.issuer + RouteToken,
			"jwks_uri":                              s.issuer + RouteWellKnownJWKS,
			"response_types_supported":              []string{"token"},
			"subject_types_supported":               []string{"pairwise"},
			"id_token_signing_alg_values_supported": []string{keys.RS256},
			"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post"},
			"grant_types_supported":                 []string{string(oauth2.ClientCredentialsGrant), string(oauth2.JWTBearerGrant)},
		})
	}
}

// JWKS returns the JSON Web Key Set used to validate tokens
func (s *AuthServer) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		router.WriteJSON(w, http.StatusOK, s.signer.GetJWKS())
	}
}

// Token handles client_credentials and on-behalf-of requests
func (s *AuthServer) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := oauthmodel.ParseTokenRequest(r)
		if err != nil {
			writeOAuthError(w, err)
			return
		}
		if err := req.Validate(); err != nil {
			writeOAuthError(w, err)
			return
		}
		if err := s.authenticate(req); err != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="OAuth2 Client Authentication"`)
			writeOAuthError(w, err)
			return
		}

		var issued *jwt.Issued
		switch req.GrantType {
		case oauth2.ClientCredentialsGrant:
			issued, err = s.creator.CreateClientCredentialsToken(req.ClientID, req.Scopes)
		case oauth2.JWTBearerGrant:
			issued, err = s.onBehalfOf(req)
		}
		if err != nil {
			writeOAuthError(w, err)
			return
		}

		log.Info().Str("client_id", req.ClientID).Str("grant_type", req.GrantType.ShortName()).Msg("token issued")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		router.WriteJSON(w, http.StatusOK, map[string]any{
			"token_type":     oauth2.TokenTypeBearer,
			"scope":          issued.Scope,
			"expires_in":     issued.ExpiresIn,
			"ext_expires_in": issued.ExpiresIn,
			"access_token":   issued.AccessToken,
		})
	}
}

// UserToken issues a token as if a user signed in to a frontend, so the middle tier has
// something to exchange. Form fields: sub, name, client_id, aud.
func (s *AuthServer) UserToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			router.WriteJSONError(w, oauthmodel.ErrorInvalidRequest, "malformed form body", http.StatusBadRequest)
			return
		}
		aud := r.PostForm.Get("aud")
		if aud == "" {
			router.WriteJSONError(w, oauthmodel.ErrorInvalidRequest, "aud is required", http.StatusBadRequest)
			return
		}

		issued, err := s.creator.CreateUserToken(r.PostForm.Get("sub"), r.PostForm.Get("name"), r.PostForm.Get("client_id"), aud)
		if err != nil {
			writeOAuthError(w, err)
			return
		}
		router.WriteJSON(w, http.StatusOK, map[string]any{
			"token_type":   oauth2.TokenTypeBearer,
			"expires_in":   issued.ExpiresIn,
			"access_token": issued.AccessToken,
		})
	}
}

func (s *AuthServer) authenticate(req *oauthmodel.TokenRequest) error {
	client, ok := s.clients[req.ClientID]
	if !ok {
		return apperrors.Wrapf(apperrors.ErrInvalidClient, "unknown client %s", req.ClientID)
	}
	if client.authMethod != req.AuthMethod {
		return apperrors.Wrapf(apperrors.ErrInvalidClient, "client %s must authenticate with %s, got %s", client.id, client.authMethod, req.AuthMethod)
	}
	if client.authMethod == oauth2.AuthMethodNone {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(client.secretHash, []byte(req.ClientSecret)); err != nil {
		return apperrors.Wrapf(apperrors.ErrInvalidClientSecret, "client %s", client.id)
	}
	return nil
}

func (s *AuthServer) onBehalfOf(req *oauthmodel.TokenRequest) (*jwt.Issued, error) {
	assertion, err := s.verifier.Verify(req.Assertion, "")
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidGrant, "assertion rejected: %v", err)
	}
	issued, err := s.creator.CreateOnBehalfOfToken(req.ClientID, req.Scopes, assertion)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidGrant, "%v", err)
	}
	return issued, nil
}

func writeOAuthError(w http.ResponseWriter, err error) {
	code, status := oauthmodel.ErrorCode(err)
	description := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("token request failed")
		description = "internal error"
	} else {
		log.Debug().Err(err).Str("error", code).Msg("token request rejected")
	}
	router.WriteJSONError(w, code, description, status)
}
