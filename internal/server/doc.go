// Package server provides HTTP routing, middleware, and the handlers spotskill serves.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Handlers
//
// [OAuthHandler] completes the Spotify authorization code flow for the auth command. It validates the
// state parameter, exchanges the code for a token and sends the result through a channel. It only
// processes one callback.
//
// [HealthHandler] reports named readiness checks as JSON on /health, and [MetricsHandler] exposes a
// Prometheus registry on /metrics while the skill runs.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
