// Package middleware holds the gin middleware of the control API: CORS and
// a per-client rate limit.
package middleware
