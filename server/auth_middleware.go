package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-obo-blueprints/authorizedclient"
	"github.com/jrsteele09/go-obo-blueprints/oauthmodel"
	"github.com/jrsteele09/go-obo-blueprints/server/router"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyPrincipal stores the authenticated authorizedclient.Principal
	ContextKeyPrincipal ContextKey = "principal"
	// ContextKeyClaims stores the verified token claims
	ContextKeyClaims ContextKey = "claims"
)

// RequireAuth is middleware that validates a Bearer access token issued for this API.
// The verified token becomes the principal's assertion for on-behalf-of calls.
func (s *Server) RequireAuth() router.Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token, description := bearerToken(r)
			if token == "" {
				unauthorized(w, description)
				return
			}

			idToken, err := s.verifier.Verify(r.Context(), token)
			if err != nil {
				log.Debug().Err(err).Msg("bearer token rejected")
				unauthorized(w, "Invalid token")
				return
			}

			claims := map[string]any{}
			if err := idToken.Claims(&claims); err != nil {
				unauthorized(w, "Invalid token claims")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, authorizedclient.NewPrincipal(idToken.Subject, token))
			ctx = context.WithValue(ctx, ContextKeyClaims, claims)
			next(w, r.WithContext(ctx))
		}
	}
}

// PrincipalFromContext returns the principal set by RequireAuth
func PrincipalFromContext(ctx context.Context) (authorizedclient.Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(authorizedclient.Principal)
	return p, ok
}

// ClaimsFromContext returns the verified claims set by RequireAuth
func ClaimsFromContext(ctx context.Context) (map[string]any, bool) {
	c, ok := ctx.Value(ContextKeyClaims).(map[string]any)
	return c, ok
}

// bearerToken extracts the token of the Authorization header. When there is none the
// second value says why.
func bearerToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "Missing Authorization header"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", "Invalid Authorization header format"
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", "Empty token"
	}
	return token, ""
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	router.WriteJSONError(w, oauthmodel.ErrorInvalidToken, description, http.StatusUnauthorized)
}
