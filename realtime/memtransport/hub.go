// Package memtransport is an in-process realtime transport. Messages sent on a channel
// name reach every subscribed channel with that name, the sender included.
package memtransport

import (
	"context"
	"errors"
	"sync"

	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
	"github.com/jrsteele09/go-dashboard-core/realtime"
)

var _ realtime.Transport = (*Hub)(nil)

// AckMode controls when SUBSCRIBED is reported
type AckMode int

const (
	// AckAsync reports from a separate goroutine, like a network round trip
	AckAsync AckMode = iota
	// AckImmediate reports before Subscribe returns
	AckImmediate
	// AckManual waits for Hub.Ack
	AckManual
)

type binding struct {
	eventType string
	filter    realtime.Filter
	handler   func(realtime.Message)
}

type channel struct {
	hub  *Hub
	name string

	mu       sync.Mutex
	bindings []binding
	status   realtime.StatusHandler
	joined   bool
	acked    bool
	failed   bool
	removed  bool
}

type Hub struct {
	ackMode      AckMode
	subscribeErr error

	mu       sync.Mutex
	channels map[*channel]struct{}
}

// Option defines a function type to modify the Hub instance.
type Option func(*Hub)

func WithAckMode(mode AckMode) Option {
	return func(h *Hub) {
		h.ackMode = mode
	}
}

// WithSubscribeError makes every subscription fail with CHANNEL_ERROR
func WithSubscribeError(err error) Option {
	return func(h *Hub) {
		h.subscribeErr = err
	}
}

func New(options ...Option) *Hub {
	h := &Hub{channels: make(map[*channel]struct{})}
	for _, opt := range options {
		opt(h)
	}
	return h
}

func (h *Hub) Channel(name string) realtime.Channel {
	return &channel{hub: h, name: name}
}

func (h *Hub) RemoveChannel(ch realtime.Channel) error {
	c, ok := ch.(*channel)
	if !ok || c.hub != h {
		return errors.New("channel does not belong to this hub")
	}
	h.mu.Lock()
	delete(h.channels, c)
	h.mu.Unlock()

	c.mu.Lock()
	if c.removed {
		c.mu.Unlock()
		return nil
	}
	c.removed = true
	status := c.status
	c.mu.Unlock()

	if status != nil {
		status(realtime.StatusClosed, nil)
	}
	return nil
}

// Ack reports SUBSCRIBED to every joined, unacknowledged channel named name
func (h *Hub) Ack(name string) {
	for _, c := range h.joined(name) {
		c.ack()
	}
}

// Fail reports status with err to every joined channel named name
func (h *Hub) Fail(name string, status realtime.SubscribeStatus, err error) {
	for _, c := range h.joined(name) {
		c.report(status, err)
	}
}

// Subscribers counts joined channels named name
func (h *Hub) Subscribers(name string) int {
	return len(h.joined(name))
}

func (h *Hub) joined(name string) []*channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*channel
	for c := range h.channels {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func (h *Hub) publish(name string, msg realtime.Message) {
	for _, c := range h.joined(name) {
		c.dispatch(msg)
	}
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
	if c.joined || c.removed {
		c.mu.Unlock()
		return c
	}
	c.joined = true
	c.status = status
	c.mu.Unlock()

	if err := c.hub.subscribeErr; err != nil {
		c.mu.Lock()
		c.failed = true
		c.mu.Unlock()
		c.report(realtime.StatusChannelError, err)
		return c
	}

	c.hub.mu.Lock()
	c.hub.channels[c] = struct{}{}
	c.hub.mu.Unlock()

	switch c.hub.ackMode {
	case AckImmediate:
		c.ack()
	case AckAsync:
		go c.ack()
	}
	return c
}

func (c *channel) Send(ctx context.Context, msg realtime.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	ok := c.joined && !c.failed && !c.removed
	c.mu.Unlock()
	if !ok {
		return dasherrors.ErrChannelClosed
	}
	c.hub.publish(c.name, msg)
	return nil
}

func (c *channel) ack() {
	c.mu.Lock()
	if c.acked || c.removed || c.status == nil {
		c.mu.Unlock()
		return
	}
	c.acked = true
	status := c.status
	c.mu.Unlock()
	status(realtime.StatusSubscribed, nil)
}

func (c *channel) report(s realtime.SubscribeStatus, err error) {
	c.mu.Lock()
	if c.removed || c.status == nil {
		c.mu.Unlock()
		return
	}
	status := c.status
	c.mu.Unlock()
	status(s, err)
}

func (c *channel) dispatch(msg realtime.Message) {
	c.mu.Lock()
	if c.removed {
		c.mu.Unlock()
		return
	}
	bindings := append([]binding(nil), c.bindings...)
	c.mu.Unlock()

	for _, b := range bindings {
		if b.filter.Matches(b.eventType, msg) {
			b.handler(msg)
		}
	}
}
