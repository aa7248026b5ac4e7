// Package cache provides the response cache consumed by the evidence
// fetcher. Keys are opaque strings; values are raw bytes with a bounded
// time-to-live. Three backends exist: file (CLI default), redis (shared
// deployments), and null (caching disabled / tests).
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is the storage interface shared by all backends.
//
// Implementations must be safe for concurrent use. A miss is reported as
// (nil, false, nil); errors are reserved for backend failures.
type Cache interface {
	// Get retrieves a value. Expired entries are treated as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Hash computes a SHA-256 hash of the input data as a 64-char hex string.
// Backends use it to derive safe storage names from arbitrary keys.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
