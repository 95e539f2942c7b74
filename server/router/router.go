// Package router holds the net/http plumbing shared by the API server and the mock servers:
// route registration, middleware chaining and JSON responses.
package router

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

const devEnv = "DEV"

type Router struct {
	env    string // Environment (e.g., "DEV", "PROD")
	mux    *http.ServeMux
	routes []string
}

func New(env string) *Router {
	return &Router{
		env: env,
		mux: http.NewServeMux(),
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) RegisterRouteHandler(pattern string, handler http.Handler) {
	r.routes = append(r.routes, pattern)
	r.mux.Handle(pattern, handler)
}

func (r *Router) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	r.routes = append(r.routes, pattern)
	r.mux.HandleFunc(pattern, handler)
}

// Routes returns the registered patterns in registration order
func (r *Router) Routes() []string {
	return append([]string(nil), r.routes...)
}

func (r *Router) IsDev() bool {
	return r.env == devEnv
}

// LogRoutes lists the registered routes at startup, in development only
func (r *Router) LogRoutes() {
	if !r.IsDev() {
		return
	}
	for _, route := range r.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Info().Msgf("[%-19s] %s", color+paddedMethod+ResetColor, path)
}
