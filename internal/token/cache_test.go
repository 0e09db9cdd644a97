// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package token

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheEmpty(t *testing.T) {
	c := NewCache("")
	got, ok := c.Get()
	assert.False(t, ok)
	assert.Empty(t, got)
	assert.True(t, c.UpdatedAt().IsZero())
}

func TestCacheSeeded(t *testing.T) {
	c := NewCache("seed-token")
	got, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, "seed-token", got)
	assert.False(t, c.UpdatedAt().IsZero())
}

func TestCacheSetOverwrites(t *testing.T) {
	c := NewCache("first")
	c.Set("second")
	got, _ := c.Get()
	assert.Equal(t, "second", got)
}

func TestCacheIgnoresEmptySet(t *testing.T) {
	c := NewCache("keep-me")
	c.Set("")
	got, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, "keep-me", got)
}

func TestCacheConcurrentSet(t *testing.T) {
	const writers = 64
	c := NewCache("")

	want := make(map[string]bool, writers)
	for i := 0; i < writers; i++ {
		want[fmt.Sprintf("token-%02d-%s", i, "abcdefghijklmnopqrstuvwxyz")] = true
	}

	var wg sync.WaitGroup
	for tok := range want {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			c.Set(tok)
			// Interleave reads; every observed value must be whole.
			if got, ok := c.Get(); ok && !want[got] {
				t.Errorf("torn read: %q", got)
			}
		}(tok)
	}
	wg.Wait()

	got, ok := c.Get()
	require.True(t, ok)
	assert.True(t, want[got], "final token %q is not one of the written values", got)
}
