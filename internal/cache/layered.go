package cache

import (
	"errors"
	"time"
)

// LayeredCache combines a fast in-process layer with a persistent layer.
// The memory layer serialises claims within one process; the disk layer
// keeps them across runs.
type LayeredCache struct {
	memory Cache
	disk   Cache
}

// NewLayeredCache creates a new layered cache (memory + disk)
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

// New returns the ledger for the given settings: memory only when dir is
// empty, memory over disk otherwise.
func New(dir string, ttl time.Duration) Cache {
	if dir == "" {
		return NewMemoryCache(ttl, 10*time.Minute)
	}
	return NewLayeredCache(ttl, dir, ttl)
}

// Get retrieves a value from the cache (checks memory first, then disk)
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	if val, found := c.disk.Get(key); found {
		// Promote to memory
		_ = c.memory.Set(key, val, 0)
		return val, true
	}

	return nil, false
}

// Set stores a value in both layers
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, ttl); err != nil {
		return err
	}
	return c.disk.Set(key, value, ttl)
}

// Add claims key in memory first, then on disk. A key already present on
// disk stays claimed in memory with the disk value; any other disk failure
// releases the memory claim.
func (c *LayeredCache) Add(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Add(key, value, ttl); err != nil {
		return err
	}

	err := c.disk.Add(key, value, ttl)
	switch {
	case errors.Is(err, ErrExists):
		if existing, ok := c.disk.Get(key); ok {
			_ = c.memory.Set(key, existing, ttl)
		}
	case err != nil:
		_ = c.memory.Delete(key)
	}
	return err
}

// Delete removes a value from both layers
func (c *LayeredCache) Delete(key string) error {
	return errors.Join(c.memory.Delete(key), c.disk.Delete(key))
}

// Clear removes all values from both layers
func (c *LayeredCache) Clear() error {
	return errors.Join(c.memory.Clear(), c.disk.Clear())
}
