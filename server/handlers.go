package server

import (
	"errors"
	"net/http"

	"github.com/jrsteele09/go-obo-blueprints/downstream"
	"github.com/jrsteele09/go-obo-blueprints/oauth2"
	"github.com/jrsteele09/go-obo-blueprints/oauthmodel"
	"github.com/jrsteele09/go-obo-blueprints/server/router"
	"github.com/rs/zerolog/log"
)

const pingMessage = "you have reached a middle-tier secured api."

// Ping answers authenticated callers without calling anything downstream
func (s *Server) Ping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", router.ContentTypeText)
		_, _ = w.Write([]byte(pingMessage))
	}
}

// TokenInfo returns the claims of the caller's token
func (s *Server) TokenInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		router.WriteJSON(w, http.StatusOK, claims)
	}
}

// DownstreamPing calls the downstream API on behalf of the caller and relays its answer
func (s *Server) DownstreamPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			unauthorized(w, "No authenticated principal")
			return
		}
		body, err := s.downstream.Ping(r.Context(), principal)
		s.relay(w, body, err)
	}
}

// DownstreamTokenInfo returns the downstream API's view of the on-behalf-of token
func (s *Server) DownstreamTokenInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			unauthorized(w, "No authenticated principal")
			return
		}
		body, err := s.downstream.TokenInfo(r.Context(), principal)
		s.relay(w, body, err)
	}
}

func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		router.WriteJSON(w, http.StatusOK, map[string]string{"status": "UP"})
	}
}

func (s *Server) relay(w http.ResponseWriter, body string, err error) {
	if err != nil {
		writeDownstreamError(w, err)
		return
	}
	w.Header().Set("Content-Type", router.ContentTypeJSON)
	_, _ = w.Write([]byte(body))
}

// writeDownstreamError maps a failed on-behalf-of call onto a response. Token endpoint and
// downstream bodies are logged, never relayed.
func writeDownstreamError(w http.ResponseWriter, err error) {
	var (
		failed        *oauth2.AuthorizationFailedError
		downstreamErr *downstream.Error
	)
	switch {
	case errors.Is(err, oauth2.ErrNoAuthenticatedPrincipal):
		unauthorized(w, "No usable bearer token for the on-behalf-of exchange")
	case errors.Is(err, oauth2.ErrUnknownClient), errors.Is(err, oauth2.ErrConfiguration):
		log.Error().Err(err).Msg("downstream client misconfigured")
		router.WriteJSONError(w, oauthmodel.ErrorServerError, "downstream client misconfigured", http.StatusInternalServerError)
	case errors.As(err, &failed):
		log.Warn().Err(err).Str("registration", failed.RegistrationID).Msg("on-behalf-of token not acquired")
		router.WriteJSONError(w, oauthmodel.ErrorServerError, "could not obtain a token for the downstream api", http.StatusBadGateway)
	case errors.As(err, &downstreamErr):
		log.Warn().Int("status", downstreamErr.StatusCode).Str("url", downstreamErr.URL).Str("body", downstreamErr.Body).Msg("downstream call failed")
		router.WriteJSONError(w, oauthmodel.ErrorServerError, downstreamErr.Error(), http.StatusBadGateway)
	default:
		log.Error().Err(err).Msg("downstream call failed")
		router.WriteJSONError(w, oauthmodel.ErrorServerError, "downstream call failed", http.StatusBadGateway)
	}
}
