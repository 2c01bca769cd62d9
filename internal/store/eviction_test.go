package store

import (
	"testing"
	"time"

	"electoral-service/internal/store/policy"

	"github.com/stretchr/testify/assert"
)

func TestStore_LRUEviction(t *testing.T) {
	now := time.Now()
	s := New[string](WithCapacity(2), WithPolicy(policy.NewLRU[Key]()))

	s.Set("key1", "val1", now)
	s.Set("key2", "val2", now)

	// Reading key1 makes key2 the least recently used.
	ent, found := s.Get("key1")
	assert.True(t, found)
	assert.Equal(t, "val1", ent.Value)

	s.Set("key3", "val3", now)

	_, found = s.Get("key2")
	assert.False(t, found, "key2 should be evicted")
	_, found = s.Get("key1")
	assert.True(t, found)
	_, found = s.Get("key3")
	assert.True(t, found)
}

func TestStore_FIFOEviction(t *testing.T) {
	now := time.Now()
	s := New[string](WithCapacity(2), WithPolicy(policy.NewFIFO[Key]()))

	s.Set("key1", "val1", now)
	s.Set("key2", "val2", now)
	s.Get("key1")

	s.Set("key3", "val3", now)

	_, found := s.Get("key1")
	assert.False(t, found, "key1 should be evicted (FIFO)")
	_, found = s.Get("key2")
	assert.True(t, found)
	_, found = s.Get("key3")
	assert.True(t, found)
}

func TestStore_OverwriteDoesNotEvict(t *testing.T) {
	now := time.Now()
	s := New[string](WithCapacity(2))

	s.Set("key1", "a", now)
	s.Set("key2", "b", now)
	s.Set("key1", "c", now)

	assert.Equal(t, 2, s.Len())
	ent, _ := s.Get("key1")
	assert.Equal(t, "c", ent.Value)
}

func TestStore_PolicyNameGivesEachStoreItsOwnPolicy(t *testing.T) {
	now := time.Now()
	opt := WithPolicyName("fifo")
	a := New[string](WithCapacity(1), opt)
	b := New[string](WithCapacity(1), opt)

	a.Set("x", "1", now)
	b.Set("y", "2", now)

	_, found := a.Get("x")
	assert.True(t, found, "a store must not evict keys admitted by another")
	_, found = b.Get("y")
	assert.True(t, found)
}
