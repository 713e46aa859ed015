package redistransport

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
	"github.com/jrsteele09/go-dashboard-core/realtime"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	in := realtime.Message{Type: realtime.MessageBroadcast, Event: realtime.PerformanceEvent, Payload: json.RawMessage(`{"id":"u1"}`)}
	encoded, err := encodeEnvelope(in)
	require.NoError(t, err)

	out, err := decodeEnvelope(encoded)
	require.NoError(t, err)
	require.Equal(t, in.Type, out.Type)
	require.Equal(t, in.Event, out.Event)
	require.JSONEq(t, string(in.Payload), string(out.Payload))
}

func TestDecodeEnvelope_Rejects(t *testing.T) {
	_, err := decodeEnvelope("not json")
	require.ErrorIs(t, err, dasherrors.ErrInvalidEvent)

	_, err = decodeEnvelope(`{"event":"x"}`)
	require.ErrorIs(t, err, dasherrors.ErrInvalidEvent)
}

func TestKeyUsesPrefix(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	tr, err := New(client, WithPrefix("test:"))
	require.NoError(t, err)
	require.Equal(t, "test:notifications", tr.key(realtime.NotificationChannelName))
	require.Equal(t, realtime.NotificationChannelName, tr.Channel(realtime.NotificationChannelName).Name())
}

func TestRemoveChannel_ForeignChannel(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()
	a, err := New(client)
	require.NoError(t, err)
	b, err := New(client)
	require.NoError(t, err)

	require.Error(t, a.RemoveChannel(b.Channel("x")))
	require.NoError(t, b.RemoveChannel(b.Channel("x")))
}

// Runs against a live server when REDIS_ADDR is set.
func TestTransport_PubSub(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	tr, err := New(client, WithPrefix("test:"+time.Now().Format("150405.000000")+":"))
	require.NoError(t, err)

	var mu sync.Mutex
	var received []realtime.Message
	subscribed := make(chan struct{})
	ch := tr.Channel("room").
		On(realtime.MessageBroadcast, realtime.Filter{Event: "ping"}, func(m realtime.Message) {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, m)
		}).
		Subscribe(func(status realtime.SubscribeStatus, _ error) {
			if status == realtime.StatusSubscribed {
				close(subscribed)
			}
		})

	select {
	case <-subscribed:
	case <-time.After(5 * time.Second):
		t.Fatal("subscription not acknowledged")
	}

	ctx := context.Background()
	require.NoError(t, ch.Send(ctx, realtime.Message{Type: realtime.MessageBroadcast, Event: "ping", Payload: json.RawMessage(`1`)}))
	require.NoError(t, ch.Send(ctx, realtime.Message{Type: realtime.MessageBroadcast, Event: "other", Payload: json.RawMessage(`2`)}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, tr.RemoveChannel(ch))
	require.ErrorIs(t, ch.Send(ctx, realtime.Message{Type: realtime.MessageBroadcast}), dasherrors.ErrChannelClosed)
}
