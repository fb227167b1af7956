// Package ctxkeys holds the request context keys shared by middleware and handlers.
// Leaf package so api, api/middleware and api/handlers can all import it.
package ctxkeys

import "context"

// Key is the named type for all API context keys.
// Using a named type avoids collisions with string keys from other packages
// at runtime (context.Value compares both type and value).
type Key string

const (
	// SessionID names the anonymous chat-history bucket of the caller.
	// Injected by SessionMiddleware from the session cookie.
	SessionID Key = "session_id"
)

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// String returns the non-empty string stored under key.
func String(ctx context.Context, key Key) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
