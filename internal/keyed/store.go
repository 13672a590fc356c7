package keyed

import (
	"sort"
	"sync"
)

// Entry is a point-in-time copy of one record.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
	// Seq is the first-seen sequence of the key. Lower means earlier.
	Seq uint64
}

type record[V any] struct {
	value V
	seq   uint64
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Store is a concurrent map from key to record with per-key serialisation.
// The zero value is not usable; call New.
type Store[K comparable, V any] struct {
	mu    sync.Mutex // guards data, locks and seq
	data  map[K]record[V]
	locks map[K]*keyLock
	seq   uint64
}

// New creates an empty store.
func New[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{
		data:  make(map[K]record[V]),
		locks: make(map[K]*keyLock),
	}
}

func (s *Store[K, V]) acquire(key K) *keyLock {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return l
}

func (s *Store[K, V]) release(key K, l *keyLock) {
	l.mu.Unlock()

	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()
}

// Get returns the committed value for key.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data[key]
	return r.value, ok
}

// View runs fn under the key lock with the current value.
// Use it to read records whose value is a pointer mutated inside Update.
func (s *Store[K, V]) View(key K, fn func(cur V, ok bool)) {
	l := s.acquire(key)
	defer s.release(key, l)

	s.mu.Lock()
	r, ok := s.data[key]
	s.mu.Unlock()

	fn(r.value, ok)
}

// Update runs fn under the key lock. fn receives the current value and
// whether it exists, and returns the next value and whether to keep it.
// Returning keep=false deletes the key.
//
// fn must not call back into the same Store for the same key.
func (s *Store[K, V]) Update(key K, fn func(cur V, ok bool) (next V, keep bool)) (V, bool) {
	l := s.acquire(key)
	defer s.release(key, l)

	s.mu.Lock()
	r, existed := s.data[key]
	s.mu.Unlock()

	next, keep := fn(r.value, existed)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !keep {
		delete(s.data, key)
		return next, false
	}
	if !existed {
		s.seq++
		r.seq = s.seq
	}
	r.value = next
	s.data[key] = r
	return next, true
}

// Put stores value for key, overwriting any previous value. The first-seen
// sequence of an existing key is preserved.
func (s *Store[K, V]) Put(key K, value V) {
	s.Update(key, func(V, bool) (V, bool) { return value, true })
}

// LoadAndDelete removes key and returns the value it held.
// Exactly one of any number of concurrent callers observes ok=true.
func (s *Store[K, V]) LoadAndDelete(key K) (V, bool) {
	l := s.acquire(key)
	defer s.release(key, l)

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data[key]
	if ok {
		delete(s.data, key)
	}
	return r.value, ok
}

// Delete removes key and reports whether it was present.
func (s *Store[K, V]) Delete(key K) bool {
	_, ok := s.LoadAndDelete(key)
	return ok
}

// Len returns the number of records.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Snapshot returns copies of all records ordered by first-seen sequence.
func (s *Store[K, V]) Snapshot() []Entry[K, V] {
	s.mu.Lock()
	out := make([]Entry[K, V], 0, len(s.data))
	for k, r := range s.data {
		out = append(out, Entry[K, V]{Key: k, Value: r.value, Seq: r.seq})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Clear removes every record and returns how many were dropped.
// Records being updated concurrently may be written back after Clear returns.
func (s *Store[K, V]) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.data)
	s.data = make(map[K]record[V])
	return n
}
