// Package redistransport carries realtime channels over Redis pub/sub. Each channel maps to
// one Redis channel; envelopes are JSON encoded realtime.Message values.
package redistransport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
	"github.com/jrsteele09/go-dashboard-core/realtime"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultPrefix = "dashboard:realtime:"

var _ realtime.Transport = (*Transport)(nil)

type Transport struct {
	client redis.UniversalClient
	prefix string
	logger zerolog.Logger
}

// Option defines a function type to modify the Transport instance.
type Option func(*Transport)

func WithPrefix(prefix string) Option {
	return func(t *Transport) {
		t.prefix = prefix
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

func New(client redis.UniversalClient, options ...Option) (*Transport, error) {
	if client == nil {
		return nil, errors.New("[redistransport.New] redis client is required")
	}
	t := &Transport{
		client: client,
		prefix: defaultPrefix,
		logger: log.With().Str("component", "redistransport").Logger(),
	}
	for _, opt := range options {
		opt(t)
	}
	return t, nil
}

func (t *Transport) Channel(name string) realtime.Channel {
	return &channel{transport: t, name: name}
}

func (t *Transport) RemoveChannel(ch realtime.Channel) error {
	c, ok := ch.(*channel)
	if !ok || c.transport != t {
		return errors.New("channel does not belong to this transport")
	}
	return c.close()
}

func (t *Transport) key(name string) string {
	return t.prefix + name
}

type binding struct {
	eventType string
	filter    realtime.Filter
	handler   func(realtime.Message)
}

type channel struct {
	transport *Transport
	name      string

	mu       sync.Mutex
	bindings []binding
	pubsub   *redis.PubSub
	cancel   context.CancelFunc
	done     chan struct{}
	removed  bool
}

func (c *channel) Name() string { return c.name }

func (c *channel) On(eventType string, filter realtime.Filter, handler func(realtime.Message)) realtime.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings = append(c.bindings, binding{eventType: eventType, filter: filter, handler: handler})
	return c
}

func (c *channel) Subscribe(status realtime.StatusHandler) realtime.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pubsub != nil || c.removed {
		return c
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.pubsub = c.transport.client.Subscribe(ctx, c.transport.key(c.name))
	c.done = make(chan struct{})
	go c.listen(ctx, c.pubsub, status, c.done)
	return c
}

func (c *channel) listen(ctx context.Context, ps *redis.PubSub, status realtime.StatusHandler, done chan<- struct{}) {
	defer close(done)

	if _, err := ps.Receive(ctx); err != nil {
		if !c.isRemoved() {
			status(realtime.StatusChannelError, err)
		}
		return
	}
	status(realtime.StatusSubscribed, nil)

	for msg := range ps.Channel() {
		envelope, err := decodeEnvelope(msg.Payload)
		if err != nil {
			c.transport.logger.Warn().Err(err).Str("channel", c.name).Msg("dropping malformed envelope")
			continue
		}
		c.dispatch(envelope)
	}

	if !c.isRemoved() {
		status(realtime.StatusClosed, dasherrors.ErrChannelClosed)
	}
}

func (c *channel) dispatch(msg realtime.Message) {
	c.mu.Lock()
	bindings := append([]binding(nil), c.bindings...)
	c.mu.Unlock()
	for _, b := range bindings {
		if b.filter.Matches(b.eventType, msg) {
			b.handler(msg)
		}
	}
}

func (c *channel) Send(ctx context.Context, msg realtime.Message) error {
	if c.isRemoved() {
		return dasherrors.ErrChannelClosed
	}
	payload, err := encodeEnvelope(msg)
	if err != nil {
		return err
	}
	return c.transport.client.Publish(ctx, c.transport.key(c.name), payload).Err()
}

func (c *channel) isRemoved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removed
}

func (c *channel) close() error {
	c.mu.Lock()
	if c.removed {
		c.mu.Unlock()
		return nil
	}
	c.removed = true
	ps, cancel, done := c.pubsub, c.cancel, c.done
	c.mu.Unlock()

	if ps == nil {
		return nil
	}
	cancel()
	err := ps.Close()
	<-done
	return err
}

func encodeEnvelope(msg realtime.Message) (string, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeEnvelope(payload string) (realtime.Message, error) {
	var msg realtime.Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return realtime.Message{}, dasherrors.Wrapf(dasherrors.ErrInvalidEvent, "decode envelope: %v", err)
	}
	if msg.Type == "" {
		return realtime.Message{}, dasherrors.Wrapf(dasherrors.ErrInvalidEvent, "envelope without type")
	}
	return msg, nil
}
