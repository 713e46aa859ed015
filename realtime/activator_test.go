package realtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/jrsteele09/go-dashboard-core/identity"
	"github.com/jrsteele09/go-dashboard-core/profiles"
	"github.com/jrsteele09/go-dashboard-core/realtime"
	"github.com/jrsteele09/go-dashboard-core/realtime/memtransport"
	"github.com/jrsteele09/go-dashboard-core/session"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu        sync.Mutex
	snap      session.Snapshot
	listeners []session.Listener
}

func (f *fakeSource) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) OnChange(l session.Listener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
	idx := len(f.listeners) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.listeners[idx] = nil
	}
}

func (f *fakeSource) set(s session.Snapshot) {
	f.mu.Lock()
	s.Version = f.snap.Version + 1
	f.snap = s
	listeners := append([]session.Listener(nil), f.listeners...)
	f.mu.Unlock()
	for _, l := range listeners {
		if l != nil {
			l(s)
		}
	}
}

func withProfile() session.Snapshot {
	return session.Snapshot{
		User:    &identity.User{ID: "u1"},
		Profile: &profiles.Profile{ID: "u1", Role: profiles.RoleManager},
	}
}

func TestActivator_FollowsProfilePresence(t *testing.T) {
	clk := clockwork.NewFakeClockAt(fixedNow)
	perf := realtime.NewPerformanceChannel(realtime.WithClock(clk), realtime.WithInterval(interval))
	notes := realtime.NewNotificationChannel(realtime.WithClock(clk), realtime.WithInterval(interval))
	src := &fakeSource{snap: session.Snapshot{Loading: true}}
	a := realtime.NewActivator(perf, notes)

	a.Start(context.Background(), src)
	require.False(t, a.Active())
	require.Equal(t, realtime.StateDisconnected, perf.Status())

	src.set(session.Snapshot{User: &identity.User{ID: "u1"}})
	require.False(t, a.Active())

	src.set(withProfile())
	require.True(t, a.Active())
	require.Equal(t, realtime.StateConnected, perf.Status())
	require.Equal(t, realtime.StateConnected, notes.Status())
	requireTickers(t, clk, 2)

	src.set(withProfile())
	require.True(t, a.Active())

	src.set(session.Snapshot{})
	require.False(t, a.Active())
	require.Equal(t, realtime.StateDisconnected, perf.Status())
	require.Equal(t, realtime.StateDisconnected, notes.Status())
	requireGeneratorsStopped(t, clk, perf)

	src.set(withProfile())
	require.True(t, a.Active())

	a.Stop()
	a.Stop()
	require.False(t, a.Active())
	requireGeneratorsStopped(t, clk, perf)

	src.set(session.Snapshot{})
	src.set(withProfile())
	require.False(t, a.Active())
}

// heldRemoval blocks the first RemoveChannel until released
type heldRemoval struct {
	*memtransport.Hub
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (h *heldRemoval) RemoveChannel(ch realtime.Channel) error {
	h.once.Do(func() {
		close(h.entered)
		<-h.release
	})
	return h.Hub.RemoveChannel(ch)
}

func TestActivator_ProfileReturnsWhileClosing(t *testing.T) {
	transport := &heldRemoval{
		Hub:     memtransport.New(memtransport.WithAckMode(memtransport.AckImmediate)),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	perf := realtime.NewPerformanceChannel(realtime.WithTransport(transport), realtime.WithClock(clockwork.NewFakeClockAt(fixedNow)))
	src := &fakeSource{snap: session.Snapshot{Loading: true}}
	a := realtime.NewActivator(perf)
	a.Start(context.Background(), src)
	defer a.Stop()

	src.set(withProfile())
	require.True(t, a.Active())
	require.Equal(t, realtime.StateConnected, perf.Status())

	signedOut := make(chan struct{})
	go func() {
		defer close(signedOut)
		src.set(session.Snapshot{})
	}()
	select {
	case <-transport.entered:
	case <-time.After(waitFor):
		t.Fatal("channel close never reached the transport")
	}

	// The previous handle is still closing, the reopen waits for it
	src.set(withProfile())
	require.False(t, a.Active())

	close(transport.release)
	<-signedOut
	require.Eventually(t, func() bool {
		return a.Active() && perf.Status() == realtime.StateConnected
	}, waitFor, tick)
	require.Equal(t, 1, transport.Subscribers(realtime.PerformanceChannelName))
}

func TestActivator_NoChannelOpened(t *testing.T) {
	perf := realtime.NewPerformanceChannel(realtime.WithClock(clockwork.NewFakeClockAt(fixedNow)))
	held, err := perf.Open(context.Background())
	require.NoError(t, err)

	src := &fakeSource{snap: withProfile()}
	a := realtime.NewActivator(perf)
	a.Start(context.Background(), src)
	defer a.Stop()
	require.False(t, a.Active(), "a channel that failed to open is not reported active")

	held.Close()
	src.set(withProfile())
	require.True(t, a.Active())
	require.Equal(t, realtime.StateConnected, perf.Status())
}
