// Package session owns the current {user, session, profile, loading} state. It subscribes
// once to the identity backend, resolves profiles and notifies observers.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/go-dashboard-core/identity"
	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
	"github.com/jrsteele09/go-dashboard-core/internal/metrics"
	"github.com/jrsteele09/go-dashboard-core/internal/observers"
	"github.com/jrsteele09/go-dashboard-core/profiles"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultProfileLookupTimeout = 10 * time.Second

var ErrAlreadyStarted = errors.New("session store already started")

var _ Source = (*Store)(nil)

// Store is the single source of truth for the caller's identity.
//
// Two entry points write the snapshot: the one-shot probe issued by Start and the auth
// event subscription. Once any auth event or a local SignOut has happened the probe
// result is ignored. Every applied session bumps a generation; the probe and profile
// lookups carry the generation they were started for and are discarded when it is no
// longer current.
type Store struct {
	backend       identity.Backend
	logger        zerolog.Logger
	metrics       *metrics.Metrics
	lookupTimeout time.Duration

	mu         sync.Mutex
	snap       Snapshot
	generation uint64
	eventSeen  bool
	started    bool
	closed     bool
	sub        identity.Subscription
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	listeners observers.Set[Listener]
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

// WithProfileLookupTimeout bounds every profile lookup
func WithProfileLookupTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lookupTimeout = d
		}
	}
}

func NewStore(backend identity.Backend, options ...Option) (*Store, error) {
	if backend == nil {
		return nil, errors.New("[NewStore] identity backend is required")
	}
	s := &Store{
		backend:       backend,
		logger:        log.With().Str("component", "session").Logger(),
		lookupTimeout: defaultProfileLookupTimeout,
		snap:          Snapshot{Loading: true},
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Start subscribes to auth transitions and probes for an existing session. ctx bounds the
// lifetime of the store's background work; Close releases everything.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	sub := s.backend.OnAuthStateChange(s.handleAuthEvent)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	s.sub = sub
	gen := s.generation
	s.wg.Add(1)
	s.mu.Unlock()

	go s.probe(gen)
	return nil
}

// Close unsubscribes from the backend, cancels in-flight lookups and drops all listeners.
// No listener is invoked after Close returns.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	sub, cancel := s.sub, s.cancel
	s.snap = Snapshot{Version: s.snap.Version + 1}
	s.mu.Unlock()

	s.listeners.Clear()

	if sub != nil {
		sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// OnChange registers a listener invoked after every snapshot mutation. The returned
// cancel is idempotent; after it returns the listener is never invoked again, including
// for lookups that were already in flight.
func (s *Store) OnChange(fn Listener) (cancel func()) {
	return s.listeners.Add(fn)
}

// WaitFor blocks until pred holds for the current snapshot or ctx ends.
func (s *Store) WaitFor(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	changed := make(chan struct{}, 1)
	cancel := s.OnChange(func(Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	for {
		snap := s.Snapshot()
		if pred(snap) {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-changed:
		}
	}
}

// SignIn delegates to the backend. The snapshot changes only through the resulting auth
// event.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	if _, err := s.backend.SignInWithPassword(ctx, email, password); err != nil {
		s.logger.Debug().Err(err).Str("email", email).Msg("sign in rejected")
		return err
	}
	return nil
}

// SignUp registers the account with name and role metadata; the backend materialises the
// profile out of band.
func (s *Store) SignUp(ctx context.Context, email, password, name string, role profiles.Role) error {
	err := s.backend.SignUp(ctx, email, password, identity.SignUpMetadata{Name: name, Role: role})
	if err != nil {
		s.logger.Debug().Err(err).Str("email", email).Msg("sign up rejected")
		return err
	}
	return nil
}

// SignOut clears the local snapshot before calling the backend. Local state is
// authoritative: a backend failure is logged and the clear is kept, and a probe still in
// flight can no longer restore the old session.
func (s *Store) SignOut(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.eventSeen = true
	s.generation++
	snap, changed := s.commitLocked(Snapshot{Loading: false})
	s.mu.Unlock()
	if changed {
		s.notify(snap)
	}

	if err := s.backend.SignOut(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("backend sign out failed; local session already cleared")
	}
}

func (s *Store) probe(gen uint64) {
	defer s.wg.Done()

	sess, err := s.backend.GetSession(s.ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("initial session probe failed")
		sess = nil
	}

	s.mu.Lock()
	if s.closed || s.eventSeen || gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug().Msg("discarding session probe superseded by a newer transition")
		return
	}
	s.applySessionLocked(sess, "probe")
}

func (s *Store) handleAuthEvent(event identity.AuthEvent, sess *identity.Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.eventSeen = true
	s.applySessionLocked(sess, string(event))
}

// applySessionLocked must be called with s.mu held; it releases it.
func (s *Store) applySessionLocked(sess *identity.Session, source string) {
	prev := s.snap
	next := prev
	next.Session = sess

	startLookup := false
	var gen uint64
	if sess == nil {
		s.generation++
		next.User = nil
		next.Profile = nil
		next.ProfileErr = nil
		next.Loading = false
	} else {
		user := sess.User
		next.User = &user
		sameUser := identity.SameIdentity(prev.Session, sess)
		if !sameUser {
			next.Profile = nil
			next.ProfileErr = nil
		}
		if !sameUser || next.Profile == nil {
			s.generation++
			gen = s.generation
			startLookup = true
			s.wg.Add(1)
		}
	}

	snap, changed := s.commitLocked(next)
	s.mu.Unlock()

	s.logger.Debug().Str("source", source).Str("user_id", sess.UserID()).Msg("session applied")
	if changed {
		s.notify(snap)
	}
	if startLookup {
		go s.resolveProfile(gen, sess.User.ID)
	}
}

func (s *Store) resolveProfile(gen uint64, userID string) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.lookupTimeout)
	defer cancel()

	profile, err := s.backend.GetProfile(ctx, userID)
	if err == nil && profile == nil {
		err = dasherrors.ErrProfileNotFound
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = pkgerrors.Wrap(dasherrors.ErrProfileLookupTimeout, err.Error())
	}
	if err != nil {
		profile = nil
	}

	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		s.metrics.ProfileLookup("stale")
		s.logger.Debug().Str("user_id", userID).Msg("discarding profile lookup for superseded session")
		return
	}
	next := s.snap
	next.Profile = profile
	next.ProfileErr = err
	next.Loading = false
	snap, changed := s.commitLocked(next)
	s.mu.Unlock()

	if err != nil {
		s.metrics.ProfileLookup("failed")
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("profile resolution failed")
	} else {
		s.metrics.ProfileLookup("resolved")
	}
	if changed {
		s.notify(snap)
	}
}

// commitLocked stores next if it differs from the current snapshot. Loading never goes
// back to true once cleared.
func (s *Store) commitLocked(next Snapshot) (Snapshot, bool) {
	if !s.snap.Loading {
		next.Loading = false
	}
	next.Version = s.snap.Version
	if sameSnapshot(s.snap, next) {
		return s.snap, false
	}
	next.Version++
	s.snap = next
	return next, true
}

func (s *Store) notify(snap Snapshot) {
	s.listeners.Each(func(fn Listener) {
		s.invoke(fn, snap)
	})
}

func (s *Store) invoke(fn Listener, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("session listener panicked")
		}
	}()
	fn(snap)
}
