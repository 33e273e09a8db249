// Package storage provides the broker's only cross-request state: a
// string-keyed key-value store with per-key TTL expiry.
//
// The broker writes three kinds of records, distinguished by key prefix:
//
//	pkce:{provider}:{state}  pending authorization, TTL bound
//	user:{userId}:{provider} provider token record, no TTL
//	callback:{state}         one-time session token handoff, TTL bound
//
// The key layout is part of the wire contract and must not change:
// deployed clients and previously stored sessions depend on it.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key doesn't exist or has expired
var ErrNotFound = errors.New("key not found")

// Store is the minimal capability surface the broker needs. A zero TTL
// means the entry never expires. Implementations provide per-key
// read-your-writes consistency; no multi-key transactions are offered
// or needed.
type Store interface {
	// Get returns the value for key, or ErrNotFound if the key is
	// absent or past its TTL.
	Get(ctx context.Context, key string) (string, error)

	// Set writes value under key. A positive ttl bounds the entry's
	// lifetime; zero keeps it until overwritten or deleted.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Cleaner is implemented by stores whose expired entries occupy real
// resources until reaped. The memory store expires lazily and cheaply;
// Firestore documents need periodic deletion.
type Cleaner interface {
	// CleanupExpired removes entries past their TTL and returns how
	// many were deleted.
	CleanupExpired(ctx context.Context) (int, error)
}
