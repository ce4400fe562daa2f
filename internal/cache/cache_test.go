// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTTL_GetSet(t *testing.T) {
	c := NewTTL[int](0)

	c.Set("k", 42, 5*time.Minute)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestTTL_Expiration(t *testing.T) {
	c := NewTTL[string](0)

	c.Set("shortlived", "v", 30*time.Millisecond)

	v, ok := c.Get("shortlived")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	time.Sleep(60 * time.Millisecond)

	_, ok = c.Get("shortlived")
	assert.False(t, ok, "expected key to be expired")
}

func TestTTL_GetStale(t *testing.T) {
	c := NewTTL[int](0)

	c.Set("k", 7, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("k")
	require.False(t, ok)

	v, ok := c.GetStale("k")
	require.True(t, ok, "stale read should still see the entry")
	assert.Equal(t, 7, v)
}

func TestTTL_Janitor(t *testing.T) {
	c := NewTTL[int](10 * time.Millisecond)
	defer c.Stop()

	c.Set("k", 1, 10*time.Millisecond)
	time.Sleep(80 * time.Millisecond)

	_, ok := c.GetStale("k")
	assert.False(t, ok, "janitor should have evicted the expired entry")

	stats := c.Stats()
	assert.GreaterOrEqual(t, stats.Evictions, int64(1))
}

func TestTTL_Stats(t *testing.T) {
	c := NewTTL[int](0)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Get("a")
	c.Get("a")
	c.Get("nope")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(2), stats.Sets)
	assert.Equal(t, 2, stats.CurrentSize)
}
