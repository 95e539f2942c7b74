package server

import (
	"net/http"

	"github.com/jrsteele09/go-obo-blueprints/server/router"
)

func (s *Server) initRoutes() {
	authenticated := append(s.APIMiddleware(), s.RequireAuth())

	s.RegisterRouteFunc("GET "+RouteAPI, router.ChainMiddleware(s.Ping(), authenticated...))
	s.RegisterRouteFunc("GET "+RouteTokenInfo, router.ChainMiddleware(s.TokenInfo(), authenticated...))
	s.RegisterRouteFunc("GET "+RouteDownstream, router.ChainMiddleware(s.DownstreamPing(), authenticated...))
	s.RegisterRouteFunc("GET "+RouteDownstreamTokenInfo, router.ChainMiddleware(s.DownstreamTokenInfo(), authenticated...))

	// preflight requests carry no token
	preflight := router.ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.APIMiddleware()...)
	s.RegisterRouteFunc("OPTIONS "+RouteAPI, preflight)
	s.RegisterRouteFunc("OPTIONS "+RouteAPI+"/", preflight)

	s.RegisterRouteFunc("GET "+RouteHealth, s.Health())
	if s.metricsHandler != nil && s.config.GetMetricsEnabled() {
		s.RegisterRouteHandler("GET "+RouteMetrics, s.metricsHandler)
	}
}
