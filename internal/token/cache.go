// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package token holds the process-wide access token shared by all requests.
package token

import (
	"sync"
	"time"
)

// Cache holds at most one access token. It has no expiry: a token is
// known to be stale only when the upstream rejects it. Writes are
// last-writer-wins. A Cache is safe for concurrent use; construct one at
// startup and pass it to every component that needs it.
type Cache struct {
	mu        sync.RWMutex
	token     string
	updatedAt time.Time
}

// NewCache returns an empty Cache, optionally pre-seeded with initial.
func NewCache(initial string) *Cache {
	c := &Cache{}
	c.Set(initial)
	return c
}

// Get returns the cached token and whether one is present.
func (c *Cache) Get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.token != ""
}

// Set replaces the cached token. Empty tokens are ignored.
func (c *Cache) Set(token string) {
	if token == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.updatedAt = time.Now()
}

// UpdatedAt returns when the token was last written, or the zero time.
func (c *Cache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}
