package testutil

import (
	"context"
	"net/http"

	authmw "refiler/pkg/platform/middleware/auth"
)

// WithCaller adds an authenticated caller subject to the request context.
// This simulates what the auth middleware would do for authenticated requests.
func WithCaller(req *http.Request, subject string) *http.Request {
	if subject == "" {
		return req
	}
	ctx := context.WithValue(req.Context(), authmw.ContextKeySubject, subject)
	return req.WithContext(ctx)
}

// WithClient adds a collaborator client ID to the request context.
func WithClient(req *http.Request, clientID string) *http.Request {
	if clientID == "" {
		return req
	}
	ctx := context.WithValue(req.Context(), authmw.ContextKeyClientID, clientID)
	return req.WithContext(ctx)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
