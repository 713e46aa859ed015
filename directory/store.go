// Package directory is the shared, in-memory registry of department names observed by the
// management surfaces. It is not persisted.
package directory

import (
	"strings"
	"sync"

	"github.com/jrsteele09/go-dashboard-core/internal/metrics"
	"github.com/jrsteele09/go-dashboard-core/internal/observers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultSeed is the department list a fresh store starts with
var DefaultSeed = []string{"IT", "HR", "Sales", "Marketing", "Finance", "Administration"}

// Store holds an ordered set of unique, trimmed names. Mutators validate and apply under
// one lock; subscribers run after the lock is released, once per applied mutation.
type Store struct {
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	names []string

	subs observers.Set[func()]
}

// Option defines a function type to modify the Store instance.
type Option func(*Store)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithSeed replaces DefaultSeed. Blank and duplicate names are skipped.
func WithSeed(names ...string) Option {
	return func(s *Store) {
		s.names = s.names[:0]
		for _, n := range names {
			n = strings.TrimSpace(n)
			if n != "" && s.indexLocked(n) < 0 {
				s.names = append(s.names, n)
			}
		}
	}
}

func New(options ...Option) *Store {
	s := &Store{
		logger: log.With().Str("component", "directory").Logger(),
		names:  append([]string(nil), DefaultSeed...),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// List returns a copy of the names in insertion order
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.names...)
}

// Contains reports whether name (trimmed) is present
func (s *Store) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(strings.TrimSpace(name)) >= 0
}

// Add appends the trimmed name. Empty and duplicate names are rejected.
func (s *Store) Add(name string) bool {
	name = strings.TrimSpace(name)

	s.mu.Lock()
	if name == "" || s.indexLocked(name) >= 0 {
		s.mu.Unlock()
		return s.rejected("add", name)
	}
	s.names = append(s.names, name)
	s.mu.Unlock()

	return s.applied("add", name)
}

// Rename replaces oldName in place. Renaming a name to itself succeeds.
func (s *Store) Rename(oldName, newName string) bool {
	newName = strings.TrimSpace(newName)

	s.mu.Lock()
	idx := s.indexLocked(oldName)
	if idx < 0 || newName == "" {
		s.mu.Unlock()
		return s.rejected("rename", oldName)
	}
	if existing := s.indexLocked(newName); existing >= 0 && existing != idx {
		s.mu.Unlock()
		return s.rejected("rename", oldName)
	}
	s.names[idx] = newName
	s.mu.Unlock()

	return s.applied("rename", newName)
}

// Remove deletes name. Callers check references to the department before removing it.
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	idx := s.indexLocked(name)
	if idx < 0 {
		s.mu.Unlock()
		return s.rejected("remove", name)
	}
	s.names = append(s.names[:idx], s.names[idx+1:]...)
	s.mu.Unlock()

	return s.applied("remove", name)
}

// Subscribe registers fn for every applied mutation. Listeners re-read List. The returned
// unsubscribe is idempotent.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	return s.subs.Add(fn)
}

func (s *Store) indexLocked(name string) int {
	for i, n := range s.names {
		if n == name {
			return i
		}
	}
	return -1
}

func (s *Store) rejected(op, name string) bool {
	s.metrics.DirectoryMutation(op, false)
	s.logger.Debug().Str("op", op).Str("name", name).Msg("directory mutation rejected")
	return false
}

func (s *Store) applied(op, name string) bool {
	s.metrics.DirectoryMutation(op, true)
	s.logger.Debug().Str("op", op).Str("name", name).Msg("directory mutated")
	s.notify()
	return true
}

func (s *Store) notify() {
	s.subs.Each(func(fn func()) { fn() })
}
