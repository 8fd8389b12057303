// Package cache stores fetched revision documents and query answers.
//
// Revision documents never change once published, so entries only expire to
// bound memory and disk use.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const keyVersion = "wdsync:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey generates a cache key from an arbitrary request identity such as
// a full URL or a query text
func CacheKey(identity string) string {
	hash := sha256.Sum256([]byte(identity))
	return keyVersion + hex.EncodeToString(hash[:])
}

// RevisionKey is the key of one document kind ("ttl", "compare") for one
// revision of an entity. Keys stay readable so disk entries can be inspected.
func RevisionKey(kind, entityID string, revID int64) string {
	return fmt.Sprintf("%s%s-%s-%d", keyVersion, kind, entityID, revID)
}

// CompareKey is the key of the rendered diff between two revisions
func CompareKey(fromRev, toRev int64) string {
	return fmt.Sprintf("%scompare-%d-%d", keyVersion, fromRev, toRev)
}

// Disabled is a Cache that stores nothing
type Disabled struct{}

func (Disabled) Get(string) ([]byte, bool)               { return nil, false }
func (Disabled) Set(string, []byte, time.Duration) error { return nil }
func (Disabled) Delete(string) error                     { return nil }
func (Disabled) Clear() error                            { return nil }
