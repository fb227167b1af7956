// Package uuid provides time-ordered identifiers for sessions.
// UUID v7 sorts by creation time, which keeps session listings in order.
package uuid

import (
	guuid "github.com/google/uuid"
)

// UUID is a parsed identifier.
type UUID = guuid.UUID

// NewV7 returns a new UUID v7. If the clock-based generator fails it falls
// back to a random v4 so callers never have to handle an error.
func NewV7() UUID {
	u, err := guuid.NewV7()
	if err != nil {
		return guuid.New()
	}
	return u
}

// Valid reports whether s is a canonical UUID string.
func Valid(s string) bool {
	if len(s) != 36 {
		return false
	}
	return guuid.Validate(s) == nil
}
