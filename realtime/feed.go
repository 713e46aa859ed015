// Package realtime models the best-effort live channels of the dashboard: performance rating
// updates and notifications. Each channel has an observable connection state, a bounded
// window of recent events and a synthetic generator standing in for external producers.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
	"github.com/jrsteele09/go-dashboard-core/internal/metrics"
	"github.com/jrsteele09/go-dashboard-core/internal/observers"
	"github.com/rs/zerolog"
)

type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
)

var ErrAlreadyOpen = errors.New("channel already open")

const (
	sourceSynthetic = "synthetic"
	sourceTransport = "transport"
	sourceLocal     = "local"
)

// Handle owns an open channel. Close is idempotent and releases the generator ticker, the
// transport subscription and the context watch installed by Open.
type Handle struct {
	once  sync.Once
	close func()

	mu        sync.Mutex
	stopWatch func() bool
}

func (h *Handle) Close() {
	h.once.Do(func() {
		h.unwatch()
		h.close()
	})
}

// watch closes the handle when ctx ends
func (h *Handle) watch(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopWatch = context.AfterFunc(ctx, h.Close)
}

func (h *Handle) unwatch() {
	h.mu.Lock()
	stop := h.stopWatch
	h.stopWatch = nil
	h.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// feed is the state machine shared by both channels.
type feed[T Event] struct {
	name      string
	event     string
	capacity  int
	interval  time.Duration
	transport Transport
	clock     clockwork.Clock
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	decode    func(json.RawMessage) (T, error)
	generate  func(now time.Time) T

	mu      sync.Mutex
	items   []T
	status  ConnectionState
	gen     uint64
	active  bool
	channel Channel

	observers observers.Set[func()]
}

func (f *feed[T]) init(seed []T) {
	f.items = append([]T(nil), seed...)
	f.status = StateDisconnected
}

func (f *feed[T]) open(ctx context.Context) (*Handle, error) {
	f.mu.Lock()
	if f.active {
		f.mu.Unlock()
		return nil, ErrAlreadyOpen
	}
	f.active = true
	f.gen++
	gen := f.gen
	f.status = StateConnecting
	f.mu.Unlock()
	f.metrics.ChannelConnected(f.name, false)
	f.notify()

	runCtx, cancel := context.WithCancel(ctx)

	var ch Channel
	if f.transport != nil {
		ch = f.transport.Channel(f.name).
			On(MessageBroadcast, Filter{Event: f.event}, func(msg Message) { f.receive(gen, msg) }).
			Subscribe(func(status SubscribeStatus, err error) { f.onStatus(gen, status, err) })
		f.mu.Lock()
		if f.gen == gen {
			f.channel = ch
		}
		f.mu.Unlock()
	} else {
		f.setConnected(gen)
	}

	ticker := f.clock.NewTicker(f.interval)
	done := make(chan struct{})
	var generating atomic.Bool
	go f.run(runCtx, gen, ticker, &generating, done)

	h := &Handle{}
	h.close = func() {
		cancel()
		ticker.Stop()
		// An observer closing the handle from inside a synthetic delivery runs on the
		// generator goroutine, which only exits once the delivery returns.
		if !generating.Load() {
			<-done
		}
		if ch != nil {
			if err := f.transport.RemoveChannel(ch); err != nil {
				f.logger.Warn().Err(err).Msg("failed to remove transport channel")
			}
		}
		f.teardown(gen)
	}
	h.watch(ctx)
	return h, nil
}

func (f *feed[T]) run(ctx context.Context, gen uint64, ticker clockwork.Ticker, generating *atomic.Bool, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if ctx.Err() != nil {
				return
			}
			generating.Store(true)
			f.deliver(gen, f.generate(f.clock.Now()), sourceSynthetic)
			generating.Store(false)
		}
	}
}

func (f *feed[T]) teardown(gen uint64) {
	f.mu.Lock()
	if gen != f.gen || !f.active {
		f.mu.Unlock()
		return
	}
	f.gen++
	f.active = false
	f.channel = nil
	f.status = StateDisconnected
	f.mu.Unlock()

	f.metrics.ChannelConnected(f.name, false)
	f.logger.Debug().Msg("channel closed")
	f.notify()
}

func (f *feed[T]) setConnected(gen uint64) {
	f.mu.Lock()
	if gen != f.gen || f.status != StateConnecting {
		f.mu.Unlock()
		return
	}
	f.status = StateConnected
	f.mu.Unlock()

	f.metrics.ChannelConnected(f.name, true)
	f.logger.Debug().Msg("channel connected")
	f.notify()
}

// onStatus applies transport status reports. Anything other than SUBSCRIBED ends the
// connection; there is no automatic reconnect.
func (f *feed[T]) onStatus(gen uint64, status SubscribeStatus, err error) {
	if status == StatusSubscribed {
		f.setConnected(gen)
		return
	}

	f.mu.Lock()
	if gen != f.gen || f.status == StateDisconnected {
		f.mu.Unlock()
		return
	}
	f.status = StateDisconnected
	f.mu.Unlock()

	if err == nil {
		err = dasherrors.ErrChannelClosed
	}
	f.metrics.ChannelConnected(f.name, false)
	f.logger.Warn().Err(dasherrors.Join(dasherrors.ErrChannelSubscribe, err)).
		Str("status", string(status)).
		Msg("channel disconnected")
	f.notify()
}

func (f *feed[T]) receive(gen uint64, msg Message) {
	item, err := f.decode(msg.Payload)
	if err != nil {
		f.logger.Warn().Err(err).Msg("dropping malformed event")
		return
	}
	f.deliver(gen, item, sourceTransport)
}

// deliver prepends item and trims the window. Deliveries for a closed or superseded open
// are dropped.
func (f *feed[T]) deliver(gen uint64, item T, source string) bool {
	f.mu.Lock()
	if gen != f.gen || !f.active {
		f.mu.Unlock()
		return false
	}
	f.prependLocked(item)
	f.mu.Unlock()

	f.metrics.RealtimeEvent(f.name, source)
	f.notify()
	return true
}

func (f *feed[T]) prependLocked(item T) {
	items := make([]T, 0, min(len(f.items)+1, f.capacity))
	items = append(items, item)
	for _, existing := range f.items {
		if len(items) == f.capacity {
			break
		}
		items = append(items, existing)
	}
	f.items = items
}

// update mutates the window in place; fn reports whether anything changed.
func (f *feed[T]) update(fn func(items []T) bool) {
	f.mu.Lock()
	changed := fn(f.items)
	f.mu.Unlock()
	if changed {
		f.notify()
	}
}

func (f *feed[T]) snapshot() []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]T(nil), f.items...)
}

func (f *feed[T]) currentStatus() ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *feed[T]) currentChannel() (Channel, uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channel, f.gen, f.active
}

func (f *feed[T]) onChange(fn func()) (cancel func()) {
	return f.observers.Add(fn)
}

func (f *feed[T]) notify() {
	f.observers.Each(func(fn func()) { fn() })
}
