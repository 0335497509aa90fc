// Package httpmw provides HTTP middleware for the application listener.
//
// Middleware is composed in httpserver.NewHandler, outermost first:
// security headers, panic recovery, request ID, client IP extraction,
// rate limiting, OTEL tracing, trace response headers, metrics,
// request-scoped logging, and the chi router.
//
// Health and status paths (/-/...) are polled by registries every few
// seconds and are left out of the access log.
package httpmw
