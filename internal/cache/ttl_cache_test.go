package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestTTLCache_SetAndGet tests basic storage and retrieval
func TestTTLCache_SetAndGet(t *testing.T) {
	// Arrange
	c := NewTTLCache(1*time.Minute, 30*time.Second)
	defer c.Stop()

	// Act
	c.Set("key1", "value1")
	value, found := c.Get("key1")

	// Assert
	assert.True(t, found, "Value should be found before expiration")
	assert.Equal(t, "value1", value)
}

// TestTTLCache_GetMissing tests retrieval of an absent key
func TestTTLCache_GetMissing(t *testing.T) {
	c := NewTTLCache(1*time.Minute, 30*time.Second)
	defer c.Stop()

	value, found := c.Get("missing")

	assert.False(t, found)
	assert.Nil(t, value)
}

// TestTTLCache_Expiration tests that entries expire after the TTL
func TestTTLCache_Expiration(t *testing.T) {
	// Arrange - very short TTL, long cleanup interval so Get does the check
	c := NewTTLCache(20*time.Millisecond, 1*time.Minute)
	defer c.Stop()
	c.Set("key1", "value1")

	// Act
	time.Sleep(50 * time.Millisecond)
	_, found := c.Get("key1")

	// Assert
	assert.False(t, found, "Value should not be returned after TTL")
}

// TestTTLCache_SetIfAbsent tests the first-writer-wins semantics used for
// idempotency keys
func TestTTLCache_SetIfAbsent(t *testing.T) {
	c := NewTTLCache(1*time.Minute, 30*time.Second)
	defer c.Stop()

	// First write wins
	assert.True(t, c.SetIfAbsent("key1", "first"))

	// Second write is rejected while the entry is live
	assert.False(t, c.SetIfAbsent("key1", "second"))

	value, found := c.Get("key1")
	assert.True(t, found)
	assert.Equal(t, "first", value)
}

// TestTTLCache_SetIfAbsentAfterExpiry tests that an expired entry can be
// claimed again
func TestTTLCache_SetIfAbsentAfterExpiry(t *testing.T) {
	c := NewTTLCache(20*time.Millisecond, 1*time.Minute)
	defer c.Stop()

	assert.True(t, c.SetIfAbsent("key1", "first"))
	time.Sleep(50 * time.Millisecond)

	assert.True(t, c.SetIfAbsent("key1", "second"), "Expired entry should be claimable again")
}

// TestTTLCache_Delete tests explicit removal
func TestTTLCache_Delete(t *testing.T) {
	c := NewTTLCache(1*time.Minute, 30*time.Second)
	defer c.Stop()

	c.Set("key1", "value1")
	c.Delete("key1")

	_, found := c.Get("key1")
	assert.False(t, found)
	assert.Equal(t, 0, c.Size())
}

// TestTTLCache_CleanupEvictsExpired tests the background eviction loop
func TestTTLCache_CleanupEvictsExpired(t *testing.T) {
	// Arrange - cleanup runs frequently
	c := NewTTLCache(10*time.Millisecond, 20*time.Millisecond)
	defer c.Stop()
	c.Set("key1", "value1")
	c.Set("key2", "value2")

	// Act - wait for expiry plus at least one cleanup tick
	time.Sleep(80 * time.Millisecond)

	// Assert
	assert.Equal(t, 0, c.Size(), "Cleanup should evict expired entries")
}
