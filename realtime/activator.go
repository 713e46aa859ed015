package realtime

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-dashboard-core/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Opener is a channel the Activator can open
type Opener interface {
	Name() string
	Open(ctx context.Context) (*Handle, error)
}

var (
	_ Opener = (*PerformanceChannel)(nil)
	_ Opener = (*NotificationChannel)(nil)
)

// Activator keeps its channels open exactly while the session has a profile.
//
// Closing waits for the channel generators and runs outside the lock, so a profile can
// reappear while the previous handles are still closing. Opening is deferred until every
// close has finished; the closer then reconciles against the latest snapshot.
type Activator struct {
	openers []Opener
	logger  zerolog.Logger

	mu          sync.Mutex
	ctx         context.Context
	handles     []*Handle
	closing     int
	want        bool
	unsubscribe func()
	running     bool
	seen        bool
	lastVersion uint64
}

func NewActivator(openers ...Opener) *Activator {
	return &Activator{
		openers: openers,
		logger:  log.With().Str("component", "realtime_activator").Logger(),
	}
}

// Start follows src until Stop. ctx is handed to the channels it opens.
func (a *Activator) Start(ctx context.Context, src session.Source) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.ctx = ctx
	a.seen = false
	a.want = false
	a.mu.Unlock()

	cancel := src.OnChange(a.apply)
	a.mu.Lock()
	a.unsubscribe = cancel
	a.mu.Unlock()

	a.apply(src.Snapshot())
}

// Stop unsubscribes and closes any open channel
func (a *Activator) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.want = false
	cancel := a.unsubscribe
	a.unsubscribe = nil
	handles := a.detachLocked()
	a.closing++
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	closeAll(handles)

	a.mu.Lock()
	a.closing--
	a.reconcileLocked()
}

// Active reports whether at least one channel is currently open
func (a *Activator) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handles != nil
}

func (a *Activator) apply(snap session.Snapshot) {
	a.mu.Lock()
	if !a.running || (a.seen && snap.Version < a.lastVersion) {
		a.mu.Unlock()
		return
	}
	a.seen = true
	a.lastVersion = snap.Version
	a.want = snap.Profile != nil
	a.reconcileLocked()
}

// reconcileLocked must be called with a.mu held; it releases it.
func (a *Activator) reconcileLocked() {
	for {
		switch {
		case a.running && a.want && a.handles == nil && a.closing == 0:
			a.openLocked()
		case !a.want && a.handles != nil:
			stale := a.detachLocked()
			a.closing++
			a.mu.Unlock()
			closeAll(stale)
			a.mu.Lock()
			a.closing--
			continue
		}
		a.mu.Unlock()
		return
	}
}

func (a *Activator) openLocked() {
	handles := make([]*Handle, 0, len(a.openers))
	for _, o := range a.openers {
		h, err := o.Open(a.ctx)
		if err != nil {
			a.logger.Warn().Err(err).Str("channel", o.Name()).Msg("failed to open channel")
			continue
		}
		handles = append(handles, h)
	}
	if len(handles) == 0 {
		a.logger.Warn().Msg("no realtime channel could be opened")
		return
	}
	a.handles = handles
	a.logger.Debug().Int("channels", len(handles)).Msg("realtime channels opened")
}

// detachLocked hands the open handles to the caller, which closes them after releasing
// the lock; closing waits for the generators to stop.
func (a *Activator) detachLocked() []*Handle {
	handles := a.handles
	a.handles = nil
	if handles != nil {
		a.logger.Debug().Msg("realtime channels closing")
	}
	return handles
}

func closeAll(handles []*Handle) {
	for _, h := range handles {
		h.Close()
	}
}
