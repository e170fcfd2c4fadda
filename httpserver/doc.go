// Package httpserver exposes the registrar and registry over HTTP.
//
// The API surface:
//
//	POST /api/registrar/commitment      - submit a registration commitment
//	POST /api/registrar/register        - reveal and register a name
//	POST /api/registrar/renew           - extend a registration
//	GET  /api/registrar/price/{label}   - quote rent for a duration
//	GET  /api/registry/name/{label}     - resolve a registered name
//
// Operational endpoints follow the usual pattern: /livez, /readyz,
// /drain and /undrain for load balancer integration, plus optional
// pprof under /debug. Request logging uses the slog middleware and
// Prometheus metrics are served on a separate listener.
package httpserver
