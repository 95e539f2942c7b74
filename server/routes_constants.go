package server

// Route path constants
const (
	RouteAPI                 = "/api"
	RouteTokenInfo           = "/api/tokeninfo"
	RouteDownstream          = "/api/downstream/api"
	RouteDownstreamTokenInfo = "/api/downstream/api/tokeninfo"

	RouteHealth  = "/health"
	RouteMetrics = "/metrics"
)
