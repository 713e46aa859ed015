package gate

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/jrsteele09/go-dashboard-core/internal/metrics"
	"github.com/jrsteele09/go-dashboard-core/profiles"
	"github.com/jrsteele09/go-dashboard-core/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultProfileWait = 5 * time.Second

var ErrAlreadyMounted = errors.New("gate already mounted")

// Navigator performs a route change. replace asks for the history entry to be replaced.
// Navigate must not synchronously unmount or re-evaluate the gate that called it: the
// gate holds its navigation lock for the duration of the call.
type Navigator interface {
	Navigate(target string, replace bool)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(target string, replace bool)

func (f NavigatorFunc) Navigate(target string, replace bool) { f(target, replace) }

// Gate guards one surface. It follows a session source while mounted, navigates at most once
// per decision change and owns the single ProfilePending timer.
type Gate struct {
	required    []profiles.Role
	routes      Routes
	nav         Navigator
	clock       clockwork.Clock
	profileWait time.Duration
	logger      zerolog.Logger
	metrics     *metrics.Metrics

	mounted atomic.Bool

	// navMu orders navigations against Unmount
	navMu sync.Mutex

	mu          sync.Mutex
	unsubscribe func()
	seen        bool
	lastVersion uint64
	decision    Decision
	timer       clockwork.Timer
	timerGen    uint64
	pendingUser string
	timedOut    string // user whose profile wait expired
}

// Option defines a function type to modify the Gate instance.
type Option func(*Gate)

func WithRoutes(routes Routes) Option {
	return func(g *Gate) {
		g.routes = routes
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(g *Gate) {
		g.clock = c
	}
}

// WithProfileWait bounds how long a signed in user without a profile is shown the waiting state
func WithProfileWait(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.profileWait = d
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func New(nav Navigator, required []profiles.Role, options ...Option) (*Gate, error) {
	if nav == nil {
		return nil, errors.New("[gate.New] navigator is required")
	}
	g := &Gate{
		required:    append([]profiles.Role(nil), required...),
		routes:      DefaultRoutes(),
		nav:         nav,
		clock:       clockwork.NewRealClock(),
		profileWait: defaultProfileWait,
		logger:      log.With().Str("component", "gate").Logger(),
		decision:    Decision{State: StateLoading},
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// Mount evaluates the current snapshot and follows every later one until Unmount.
func (g *Gate) Mount(src session.Source) error {
	g.mu.Lock()
	if g.mounted.Load() {
		g.mu.Unlock()
		return ErrAlreadyMounted
	}
	g.mounted.Store(true)
	g.seen = false
	g.decision = Decision{State: StateLoading}
	g.mu.Unlock()

	cancel := src.OnChange(func(snap session.Snapshot) {
		g.Evaluate(snap)
	})

	g.mu.Lock()
	g.unsubscribe = cancel
	g.mu.Unlock()

	g.Evaluate(src.Snapshot())
	return nil
}

// Unmount stops following the source and disarms the profile timer. A navigation already
// in progress finishes first; none is issued after Unmount returns.
func (g *Gate) Unmount() {
	g.mu.Lock()
	if !g.mounted.Load() {
		g.mu.Unlock()
		return
	}
	g.mounted.Store(false)
	g.disarmLocked()
	cancel := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()

	// Wait out a navigation that passed its mounted check before the flag flipped
	g.navMu.Lock()
	g.navMu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Decision returns the current decision
func (g *Gate) Decision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decision
}

// Evaluate applies a snapshot. Snapshots older than one already applied are ignored.
func (g *Gate) Evaluate(snap session.Snapshot) Decision {
	g.mu.Lock()
	if !g.mounted.Load() || (g.seen && snap.Version < g.lastVersion) {
		d := g.decision
		g.mu.Unlock()
		return d
	}
	g.seen = true
	g.lastVersion = snap.Version

	userID := ""
	if snap.User != nil {
		userID = snap.User.ID
	}
	if userID != g.timedOut {
		g.timedOut = ""
	}

	d := Decide(snap, g.required, g.routes)
	if d.State == StateProfilePending {
		if g.timedOut != "" {
			d = Decision{State: StateUnauthenticated, Target: g.routes.Login}
			g.disarmLocked()
		} else if g.timer == nil || g.pendingUser != userID {
			g.armLocked(userID)
		}
	} else {
		g.disarmLocked()
	}

	target := g.transitionLocked(d)
	g.mu.Unlock()

	g.navigate(target)
	return d
}

// transitionLocked records d and returns the navigation target, empty when the decision
// is unchanged or does not navigate.
func (g *Gate) transitionLocked(d Decision) string {
	prev := g.decision
	g.decision = d
	if !d.Navigates() || prev == d {
		return ""
	}
	return d.Target
}

func (g *Gate) armLocked(userID string) {
	g.disarmLocked()
	g.timerGen++
	gen := g.timerGen
	g.pendingUser = userID
	g.timer = g.clock.AfterFunc(g.profileWait, func() {
		g.profileWaitExpired(gen, userID)
	})
}

func (g *Gate) disarmLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.timerGen++
	g.pendingUser = ""
}

func (g *Gate) profileWaitExpired(gen uint64, userID string) {
	g.mu.Lock()
	if !g.mounted.Load() || gen != g.timerGen || g.decision.State != StateProfilePending {
		g.mu.Unlock()
		return
	}
	g.timer = nil
	g.pendingUser = ""
	g.timedOut = userID
	target := g.transitionLocked(Decision{State: StateUnauthenticated, Target: g.routes.Login})
	g.mu.Unlock()

	g.logger.Warn().Str("user_id", userID).Dur("waited", g.profileWait).Msg("profile did not resolve, redirecting to login")
	g.navigate(target)
}

func (g *Gate) navigate(target string) {
	if target == "" {
		return
	}
	g.navMu.Lock()
	defer g.navMu.Unlock()
	if !g.mounted.Load() {
		return
	}
	g.metrics.GateNavigation(target)
	g.logger.Debug().Str("target", target).Msg("navigating")
	g.nav.Navigate(target, true)
}
