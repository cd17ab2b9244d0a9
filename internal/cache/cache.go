// Package cache holds the scored-trace ledger: a claim store that records
// which traces the auto-scorer has already written scores for. Claims are
// taken with Add, which is atomic per layer, so two concurrent workers can
// never both own the same trace.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrExists is returned by Add when the key is already present
var ErrExists = errors.New("cache: key already exists")

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	// Add stores value only if key is absent, otherwise returns ErrExists
	Add(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey generates the ledger key for a trace scored under scoreName
func CacheKey(traceID, scoreName string) string {
	hash := sha256.Sum256([]byte(scoreName + "\x00" + traceID))
	return "truckeval:v1:" + hex.EncodeToString(hash[:])
}
