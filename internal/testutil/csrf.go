package testutil

import (
	"context"
	"net/http"
)

// csrfTokenKey matches the key used by gorilla/csrf internally.
// This allows us to inject a mock token for testing.
const csrfTokenKey = "gorilla.csrf.Token"

// TestCSRFToken is the token WithCSRFToken injects.
const TestCSRFToken = "test-csrf-token-12345"

// WithCSRFToken adds a mock CSRF token to the request context, so handlers
// calling csrf.Token(r) outside the real middleware see a stable value.
func WithCSRFToken(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), csrfTokenKey, TestCSRFToken)
	return r.WithContext(ctx)
}
