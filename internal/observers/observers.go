// Package observers holds the registration list shared by every component that fans a
// value out to subscribers.
package observers

import (
	"sort"
	"sync"
	"sync/atomic"
)

type entry[F any] struct {
	fn   F
	live atomic.Bool
}

// Set is an ordered set of callbacks of type F. The zero value is ready to use.
//
// Each calls callbacks in registration order outside the lock, so a callback may add or
// remove registrations. A callback removed while Each is running is not called.
type Set[F any] struct {
	mu      sync.Mutex
	next    uint64
	entries map[uint64]*entry[F]
}

// Add registers fn. The returned remove is idempotent; once it returns fn is never called
// again.
func (s *Set[F]) Add(fn F) (remove func()) {
	e := &entry[F]{fn: fn}
	e.live.Store(true)

	s.mu.Lock()
	if s.entries == nil {
		s.entries = make(map[uint64]*entry[F])
	}
	s.next++
	id := s.next
	s.entries[id] = e
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.live.Store(false)
			s.mu.Lock()
			delete(s.entries, id)
			s.mu.Unlock()
		})
	}
}

// Each passes every live callback to call, in registration order.
func (s *Set[F]) Each(call func(F)) {
	s.mu.Lock()
	ids := make([]uint64, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	entries := make([]*entry[F], 0, len(ids))
	for _, id := range ids {
		entries = append(entries, s.entries[id])
	}
	s.mu.Unlock()

	for _, e := range entries {
		if e.live.Load() {
			call(e.fn)
		}
	}
}

// Clear removes every registration
func (s *Set[F]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		e.live.Store(false)
		delete(s.entries, id)
	}
}

func (s *Set[F]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
