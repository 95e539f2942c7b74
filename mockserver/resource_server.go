package mockserver

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-obo-blueprints/oauthmodel"
	"github.com/jrsteele09/go-obo-blueprints/server/router"
	"github.com/jrsteele09/go-obo-blueprints/token/jwt"
	"github.com/rs/zerolog/log"
)

// PingResponse is what the resource server answers on every GET
type PingResponse struct {
	Ping        string         `json:"ping"`
	AccessToken map[string]any `json:"accessToken"`
}

// ResourceServer stands in for the downstream API. It echoes the claims of the bearer
// token it received without verifying it.
type ResourceServer struct {
	*router.Router
}

func NewResourceServer(env string) *ResourceServer {
	s := &ResourceServer{Router: router.New(env)}
	s.RegisterRouteFunc("GET /", router.ChainMiddleware(s.Ping(), s.LoggingMiddleware, s.RecoverMiddleware))
	return s
}

func (s *ResourceServer) Ping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info().Str("path", r.URL.Path).Bool("bearer", r.Header.Get("Authorization") != "").Msg("resource request")

		resp := PingResponse{Ping: "pong"}
		if token := bearerToken(r); token != "" {
			claims, err := jwt.ParseUnverified(token)
			if err != nil {
				router.WriteJSONError(w, oauthmodel.ErrorInvalidToken, err.Error(), http.StatusBadRequest)
				return
			}
			resp.AccessToken = claims
		}
		router.WriteJSON(w, http.StatusOK, resp)
	}
}

// bearerToken returns the token of an "Authorization: Bearer <token>" header, or ""
func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(strings.TrimSpace(parts[0]), "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
