// Package persist provides the key-to-document store behind the memory
// engine. A read distinguishes "found", "not found" and "backend error" so
// callers can tell a fresh user from a storage outage.
package persist

import (
	"context"
	"fmt"
)

// Adapter stores opaque JSON documents by logical key.
type Adapter interface {
	// Get returns the stored document and true when the key exists. A false
	// result with a nil error means the key has never been written.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, doc []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Logical key families used by the engine.

func ContextKey(userID, sessionID string) string {
	return fmt.Sprintf("memory/%s/%s", userID, sessionID)
}

func ProfileKey(userID string) string {
	return fmt.Sprintf("memory/%s/profile", userID)
}

func LongTermKey(userID string) string {
	return fmt.Sprintf("memory/%s/longterm", userID)
}

func PreferencesKey(userID string) string {
	return fmt.Sprintf("memory/%s/preferences", userID)
}
