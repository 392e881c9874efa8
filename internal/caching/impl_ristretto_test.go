package caching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoragePartition(t *testing.T) {
	caches, err := NewRistrettoCache(1*MB, CacheNoMaxAge, false)
	require.NoError(t, err)

	a := LocalStorageKey{Origin: "https://a.example", Key: "userName"}
	b := LocalStorageKey{Origin: "https://b.example", Key: "userName"}

	caches.LocalStorage.Set(a, "Ana")
	require.Eventually(t, func() bool {
		_, ok := caches.LocalStorage.Get(a)
		return ok
	}, time.Second, time.Millisecond)

	got, _ := caches.LocalStorage.Get(a)
	assert.Equal(t, "Ana", got)
	_, ok := caches.LocalStorage.Get(b)
	assert.False(t, ok, "origins must not share entries")

	caches.LocalStorage.Unset(a)
	_, ok = caches.LocalStorage.Get(a)
	assert.False(t, ok)
}

func TestImmutablePartitionPanicsOnChange(t *testing.T) {
	caches, err := NewRistrettoCache(1*MB, CacheNoMaxAge, false)
	require.NoError(t, err)
	p := caches.LocalStorage.(*RistrettoCachePartition[LocalStorageKey, string])
	p.Mutable = false

	k := LocalStorageKey{Origin: "o", Key: "k"}
	p.Set(k, "one")
	require.Eventually(t, func() bool {
		_, ok := p.Get(k)
		return ok
	}, time.Second, time.Millisecond)
	assert.Panics(t, func() { p.Set(k, "two") })
	assert.Panics(t, func() { p.Unset(k) })
}
