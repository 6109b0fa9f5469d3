// Package middleware holds HTTP middleware shared by every route: request
// identity, request-scoped logging, and Prometheus metrics.
package middleware

// contextKey is a private type for context keys defined in this package,
// preventing collisions with keys from other packages.
type contextKey string
