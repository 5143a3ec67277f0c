// Package session holds per-key ephemeral state behind per-key locks.
//
// Every live key owns a slot with its own mutex. Operations on the same key
// are serialized by that mutex; operations on different keys only meet on a
// shard mutex held for the few instructions it takes to find or create the
// slot, never while a callback runs.
package session

import (
	"hash/maphash"
	"sync"
)

const shardCount = 64

type slot[V any] struct {
	mu   sync.Mutex
	refs int // goroutines holding or waiting for mu
	val  V
	ok   bool
}

type shard[V any] struct {
	mu    sync.Mutex
	slots map[string]*slot[V]
}

// Store is a concurrency-safe map with per-key exclusivity
type Store[V any] struct {
	seed   maphash.Seed
	shards [shardCount]shard[V]
}

// NewStore creates an empty store
func NewStore[V any]() *Store[V] {
	s := &Store[V]{seed: maphash.MakeSeed()}
	for i := range s.shards {
		s.shards[i].slots = make(map[string]*slot[V])
	}
	return s
}

func (s *Store[V]) shardFor(key string) *shard[V] {
	return &s.shards[maphash.String(s.seed, key)%shardCount]
}

// acquire returns the locked slot for key, creating it if needed
func (s *Store[V]) acquire(key string) (*shard[V], *slot[V]) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	sl, ok := sh.slots[key]
	if !ok {
		sl = &slot[V]{}
		sh.slots[key] = sl
	}
	sl.refs++
	sh.mu.Unlock()

	sl.mu.Lock()
	return sh, sl
}

// release unlocks the slot and drops it once empty and unreferenced
func (s *Store[V]) release(key string, sh *shard[V], sl *slot[V]) {
	sl.mu.Unlock()

	sh.mu.Lock()
	sl.refs--
	if sl.refs == 0 && !sl.ok {
		delete(sh.slots, key)
	}
	sh.mu.Unlock()
}

// Get returns the value for key
func (s *Store[V]) Get(key string) (V, bool) {
	sh, sl := s.acquire(key)
	defer s.release(key, sh, sl)
	return sl.val, sl.ok
}

// Set stores the value for key, replacing any previous one
func (s *Store[V]) Set(key string, val V) {
	sh, sl := s.acquire(key)
	defer s.release(key, sh, sl)
	sl.val, sl.ok = val, true
}

// Delete removes key
func (s *Store[V]) Delete(key string) {
	s.Take(key)
}

// Take removes key and returns the value it held.
// Of two concurrent Takes on the same key at most one reports ok.
func (s *Store[V]) Take(key string) (V, bool) {
	return s.TakeIf(key, func(V) bool { return true })
}

// TakeIf removes key only when match accepts its current value
func (s *Store[V]) TakeIf(key string, match func(V) bool) (V, bool) {
	sh, sl := s.acquire(key)
	defer s.release(key, sh, sl)

	var zero V
	if !sl.ok || !match(sl.val) {
		return zero, false
	}
	val := sl.val
	sl.val, sl.ok = zero, false
	return val, true
}

// Update runs fn with the current value under the key's lock.
// fn returns the new value and whether to keep it; returning false deletes the key.
// The error from fn is returned unchanged and leaves the value untouched.
func (s *Store[V]) Update(key string, fn func(cur V, exists bool) (V, bool, error)) error {
	sh, sl := s.acquire(key)
	defer s.release(key, sh, sl)

	next, keep, err := fn(sl.val, sl.ok)
	if err != nil {
		return err
	}
	if keep {
		sl.val, sl.ok = next, true
	} else {
		var zero V
		sl.val, sl.ok = zero, false
	}
	return nil
}

// Keys returns the keys holding a value at the time each is visited
func (s *Store[V]) Keys() []string {
	var candidates []string
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for k := range sh.slots {
			candidates = append(candidates, k)
		}
		sh.mu.Unlock()
	}

	keys := candidates[:0]
	for _, k := range candidates {
		if _, ok := s.Get(k); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Len returns the number of keys holding a value
func (s *Store[V]) Len() int {
	return len(s.Keys())
}
