package testutil

import (
	"context"
	"net/http"
	"time"

	"peoplehub/pkg/requestcontext"
)

// FixedNow is the reference instant used across service tests.
var FixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

// Ctx returns a background context pinned to FixedNow.
func Ctx() context.Context {
	return requestcontext.WithTime(context.Background(), FixedNow)
}

// WithRequestTime pins the request-scoped time, as the request middleware would.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithClient adds client IP and User-Agent to the request context.
func WithClient(req *http.Request, clientIP, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), clientIP, userAgent))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), key, value))
}
