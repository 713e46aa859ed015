package realtime_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
	"github.com/jrsteele09/go-dashboard-core/realtime"
	"github.com/jrsteele09/go-dashboard-core/realtime/memtransport"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	interval = 10 * time.Second
	waitFor  = 2 * time.Second
	tick     = 2 * time.Millisecond
)

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type statusRecorder struct {
	mu       sync.Mutex
	statuses []realtime.ConnectionState
}

func (r *statusRecorder) watch(status func() realtime.ConnectionState) func() {
	return func() {
		s := status()
		r.mu.Lock()
		defer r.mu.Unlock()
		if n := len(r.statuses); n == 0 || r.statuses[n-1] != s {
			r.statuses = append(r.statuses, s)
		}
	}
}

func (r *statusRecorder) all() []realtime.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.ConnectionState(nil), r.statuses...)
}

// requireTickers waits until clk has at least n pending tickers or timers
func requireTickers(t *testing.T, clk *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, clk.BlockUntilContext(ctx, n))
}

// requireGeneratorsStopped advances well past the generator period and checks nothing
// arrives.
func requireGeneratorsStopped(t *testing.T, clk *clockwork.FakeClock, ch *realtime.PerformanceChannel) {
	t.Helper()
	before := ch.Updates()
	clk.Advance(10 * interval)
	require.Never(t, func() bool { return !assert.ObjectsAreEqual(before, ch.Updates()) }, 50*time.Millisecond, tick)
}

func validUpdate(id string) realtime.PerformanceUpdate {
	return realtime.PerformanceUpdate{
		ID:         id,
		MemberID:   "m-001",
		MemberName: "Alex Johnson",
		Category:   "Teamwork",
		OldRating:  70,
		NewRating:  80,
		UpdatedBy:  "Lee",
		Timestamp:  fixedNow,
		Department: "IT",
	}
}

func TestPerformanceChannel_OpenWithoutTransport(t *testing.T) {
	clk := clockwork.NewFakeClockAt(fixedNow)
	ch := realtime.NewPerformanceChannel(realtime.WithClock(clk), realtime.WithInterval(interval))
	rec := &statusRecorder{}
	cancel := ch.OnChange(rec.watch(ch.Status))
	defer cancel()
	require.Equal(t, realtime.StateDisconnected, ch.Status())

	h, err := ch.Open(context.Background())
	require.NoError(t, err)
	require.Equal(t, realtime.StateConnected, ch.Status())

	h.Close()
	h.Close()
	require.Equal(t, []realtime.ConnectionState{
		realtime.StateConnecting,
		realtime.StateConnected,
		realtime.StateDisconnected,
	}, rec.all())
}

func TestPerformanceChannel_ConnectsOnAck(t *testing.T) {
	hub := memtransport.New(memtransport.WithAckMode(memtransport.AckManual))
	ch := realtime.NewPerformanceChannel(realtime.WithTransport(hub), realtime.WithClock(clockwork.NewFakeClockAt(fixedNow)))

	h, err := ch.Open(context.Background())
	require.NoError(t, err)
	defer h.Close()
	require.Equal(t, realtime.StateConnecting, ch.Status())

	hub.Ack(realtime.PerformanceChannelName)
	require.Equal(t, realtime.StateConnected, ch.Status())

	hub.Fail(realtime.PerformanceChannelName, realtime.StatusTimedOut, nil)
	require.Equal(t, realtime.StateDisconnected, ch.Status())

	// No automatic reconnect
	hub.Ack(realtime.PerformanceChannelName)
	require.Equal(t, realtime.StateDisconnected, ch.Status())
}

func TestPerformanceChannel_AckFailure(t *testing.T) {
	hub := memtransport.New(memtransport.WithAckMode(memtransport.AckManual))
	ch := realtime.NewPerformanceChannel(realtime.WithTransport(hub), realtime.WithClock(clockwork.NewFakeClockAt(fixedNow)))
	h, err := ch.Open(context.Background())
	require.NoError(t, err)
	defer h.Close()

	hub.Fail(realtime.PerformanceChannelName, realtime.StatusChannelError, nil)
	require.Equal(t, realtime.StateDisconnected, ch.Status())
}

func TestPerformanceChannel_CloseBeforeAck(t *testing.T) {
	hub := memtransport.New(memtransport.WithAckMode(memtransport.AckManual))
	clk := clockwork.NewFakeClockAt(fixedNow)
	ch := realtime.NewPerformanceChannel(realtime.WithTransport(hub), realtime.WithClock(clk))
	h, err := ch.Open(context.Background())
	require.NoError(t, err)

	h.Close()
	hub.Ack(realtime.PerformanceChannelName)

	require.Equal(t, realtime.StateDisconnected, ch.Status())
	require.Zero(t, hub.Subscribers(realtime.PerformanceChannelName))
	requireGeneratorsStopped(t, clk, ch)
}

func TestPerformanceChannel_OpenTwice(t *testing.T) {
	ch := realtime.NewPerformanceChannel(realtime.WithClock(clockwork.NewFakeClockAt(fixedNow)))
	h, err := ch.Open(context.Background())
	require.NoError(t, err)

	_, err = ch.Open(context.Background())
	require.ErrorIs(t, err, realtime.ErrAlreadyOpen)

	h.Close()
	h2, err := ch.Open(context.Background())
	require.NoError(t, err)
	h2.Close()
}

func TestPerformanceChannel_SyntheticWindow(t *testing.T) {
	clk := clockwork.NewFakeClockAt(fixedNow)
	ch := realtime.NewPerformanceChannel(realtime.WithClock(clk), realtime.WithInterval(interval), realtime.WithRandSeed(7))
	h, err := ch.Open(context.Background())
	require.NoError(t, err)

	for i := 1; i <= realtime.PerformanceCapacity+5; i++ {
		clk.Advance(interval)
		want := min(i, realtime.PerformanceCapacity)
		require.Eventually(t, func() bool { return len(ch.Updates()) == want && ch.Updates()[0].Timestamp.Equal(clk.Now()) }, waitFor, tick)
	}
	for _, u := range ch.Updates() {
		require.NoError(t, u.Validate())
		require.Equal(t, "System", u.UpdatedBy)
	}

	h.Close()
	requireGeneratorsStopped(t, clk, ch)
	require.Equal(t, realtime.StateDisconnected, ch.Status())
}

func TestPerformanceChannel_ContextCancelCloses(t *testing.T) {
	clk := clockwork.NewFakeClockAt(fixedNow)
	ch := realtime.NewPerformanceChannel(realtime.WithClock(clk))
	ctx, cancel := context.WithCancel(context.Background())
	_, err := ch.Open(ctx)
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool { return ch.Status() == realtime.StateDisconnected }, waitFor, tick)
	requireGeneratorsStopped(t, clk, ch)
}

func TestPerformanceChannel_BroadcastThroughTransport(t *testing.T) {
	hub := memtransport.New(memtransport.WithAckMode(memtransport.AckImmediate))
	ch := realtime.NewPerformanceChannel(realtime.WithTransport(hub), realtime.WithClock(clockwork.NewFakeClockAt(fixedNow)))
	other := realtime.NewPerformanceChannel(realtime.WithTransport(hub), realtime.WithClock(clockwork.NewFakeClockAt(fixedNow)))
	h, err := ch.Open(context.Background())
	require.NoError(t, err)
	defer h.Close()
	h2, err := other.Open(context.Background())
	require.NoError(t, err)
	defer h2.Close()

	require.NoError(t, ch.Broadcast(context.Background(), validUpdate("p1")))

	require.Len(t, ch.Updates(), 1)
	require.Equal(t, "p1", ch.Updates()[0].ID)
	require.Len(t, other.Updates(), 1)
	require.Equal(t, 80, other.Updates()[0].NewRating)
}

func TestPerformanceChannel_BroadcastRejections(t *testing.T) {
	ch := realtime.NewPerformanceChannel(realtime.WithClock(clockwork.NewFakeClockAt(fixedNow)))

	err := ch.Broadcast(context.Background(), validUpdate("p1"))
	require.ErrorIs(t, err, dasherrors.ErrChannelClosed)

	h, err := ch.Open(context.Background())
	require.NoError(t, err)
	defer h.Close()

	bad := validUpdate("p2")
	bad.NewRating = 150
	require.ErrorIs(t, ch.Broadcast(context.Background(), bad), dasherrors.ErrInvalidEvent)

	require.NoError(t, ch.Broadcast(context.Background(), validUpdate("p3")))
	require.Len(t, ch.Updates(), 1)
	require.Len(t, ch.Events(), 1)
}

func TestPerformanceChannel_DropsMalformedPayloads(t *testing.T) {
	hub := memtransport.New(memtransport.WithAckMode(memtransport.AckImmediate))
	ch := realtime.NewPerformanceChannel(realtime.WithTransport(hub), realtime.WithClock(clockwork.NewFakeClockAt(fixedNow)))
	h, err := ch.Open(context.Background())
	require.NoError(t, err)
	defer h.Close()

	producer := hub.Channel(realtime.PerformanceChannelName).Subscribe(func(realtime.SubscribeStatus, error) {})
	err = producer.Send(context.Background(), realtime.Message{
		Type:    realtime.MessageBroadcast,
		Event:   realtime.PerformanceEvent,
		Payload: json.RawMessage(`{"id":"x","unexpected":1}`),
	})
	require.NoError(t, err)
	require.Empty(t, ch.Updates())
}

func TestNotificationChannel_SeedAndWindow(t *testing.T) {
	clk := clockwork.NewFakeClockAt(fixedNow)
	seed := make([]realtime.Notification, 0, 12)
	for i := 0; i < 12; i++ {
		seed = append(seed, realtime.Notification{ID: string(rune('a' + i)), Title: "seed", Type: realtime.NotificationInfo})
	}
	ch := realtime.NewNotificationChannel(realtime.WithClock(clk), realtime.WithInterval(interval), realtime.WithNotificationSeed(seed...))
	require.Len(t, ch.Notifications(), 12)
	require.Equal(t, 12, ch.UnreadCount())

	h, err := ch.Open(context.Background())
	require.NoError(t, err)
	defer h.Close()

	clk.Advance(interval)
	require.Eventually(t, func() bool { return len(ch.Notifications()) == realtime.NotificationCapacity }, waitFor, tick)
	require.NotEqual(t, "a", ch.Notifications()[0].ID)
	require.Equal(t, "a", ch.Notifications()[1].ID)
}

func TestNotificationChannel_MarkRead(t *testing.T) {
	seed := realtime.SeedNotifications(fixedNow)
	ch := realtime.NewNotificationChannel(realtime.WithClock(clockwork.NewFakeClockAt(fixedNow)), realtime.WithNotificationSeed(seed...))
	require.Equal(t, 2, ch.UnreadCount())

	changes := 0
	cancel := ch.OnChange(func() { changes++ })
	defer cancel()

	ch.MarkRead("unknown")
	ch.MarkRead(seed[2].ID)
	require.Zero(t, changes)

	ch.MarkRead(seed[0].ID)
	require.Equal(t, 1, changes)
	require.Equal(t, 1, ch.UnreadCount())
	require.True(t, ch.Notifications()[0].Read)

	ch.MarkAllRead()
	ch.MarkAllRead()
	require.Equal(t, 2, changes)
	require.Zero(t, ch.UnreadCount())
}

func TestNotificationChannel_ReceivesFromTransport(t *testing.T) {
	hub := memtransport.New(memtransport.WithAckMode(memtransport.AckImmediate))
	ch := realtime.NewNotificationChannel(realtime.WithTransport(hub), realtime.WithClock(clockwork.NewFakeClockAt(fixedNow)))
	h, err := ch.Open(context.Background())
	require.NoError(t, err)
	defer h.Close()

	payload, err := json.Marshal(realtime.Notification{ID: "n1", Title: "Hello", Message: "from transport", Type: realtime.NotificationInfo, Timestamp: fixedNow})
	require.NoError(t, err)
	producer := hub.Channel(realtime.NotificationChannelName).Subscribe(func(realtime.SubscribeStatus, error) {})
	require.NoError(t, producer.Send(context.Background(), realtime.Message{Type: realtime.MessageBroadcast, Event: realtime.NotificationEvent, Payload: payload}))

	require.Len(t, ch.Notifications(), 1)
	require.Equal(t, "n1", ch.Events()[0].EventID())
}

func TestChannel_NoObserverCallsAfterCancel(t *testing.T) {
	ch := realtime.NewPerformanceChannel(realtime.WithClock(clockwork.NewFakeClockAt(fixedNow)))
	calls := 0
	cancel := ch.OnChange(func() { calls++ })
	cancel()

	h, err := ch.Open(context.Background())
	require.NoError(t, err)
	h.Close()
	require.Zero(t, calls)
}

// countingContext routes cancellation registrations through AfterFunc so the test can see
// how many are still live.
type countingContext struct {
	context.Context
	live atomic.Int32
}

func (c *countingContext) Value(any) any { return nil }

func (c *countingContext) AfterFunc(f func()) func() bool {
	c.live.Add(1)
	stop := context.AfterFunc(c.Context, f)
	var once sync.Once
	return func() bool {
		stopped := stop()
		once.Do(func() { c.live.Add(-1) })
		return stopped
	}
}

func TestChannel_CloseReleasesContextRegistrations(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx := &countingContext{Context: parent}
	ch := realtime.NewPerformanceChannel(realtime.WithClock(clockwork.NewFakeClockAt(fixedNow)))

	for i := 0; i < 3; i++ {
		h, err := ch.Open(ctx)
		require.NoError(t, err)
		require.Positive(t, ctx.live.Load())
		h.Close()
		require.Zero(t, ctx.live.Load())
	}
}

func TestChannel_ObserverClosesFromSyntheticDelivery(t *testing.T) {
	clk := clockwork.NewFakeClockAt(fixedNow)
	ch := realtime.NewPerformanceChannel(realtime.WithClock(clk), realtime.WithInterval(interval))
	h, err := ch.Open(context.Background())
	require.NoError(t, err)

	closed := make(chan struct{})
	var closing atomic.Bool
	cancel := ch.OnChange(func() {
		if len(ch.Updates()) > 0 && closing.CompareAndSwap(false, true) {
			h.Close()
			close(closed)
		}
	})
	defer cancel()

	clk.Advance(interval)
	select {
	case <-closed:
	case <-time.After(waitFor):
		t.Fatal("closing from an observer did not return")
	}
	require.Equal(t, realtime.StateDisconnected, ch.Status())
	require.Len(t, ch.Updates(), 1)
	requireGeneratorsStopped(t, clk, ch)
}

func TestChannel_LogsChannelNameOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).With().Str("component", "realtime").Logger()
	ch := realtime.NewPerformanceChannel(realtime.WithClock(clockwork.NewFakeClockAt(fixedNow)), realtime.WithLogger(logger))

	require.Error(t, ch.Broadcast(context.Background(), validUpdate("p1")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		require.Equal(t, 1, strings.Count(line, `"channel":`), line)
		require.Contains(t, line, `"channel":"`+realtime.PerformanceChannelName+`"`)
	}
}
