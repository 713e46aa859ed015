package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
)

// PerformanceChannel carries rating updates in a window of PerformanceCapacity entries.
type PerformanceChannel struct {
	feed feed[PerformanceUpdate]
}

func NewPerformanceChannel(opts ...Option) *PerformanceChannel {
	o := buildOptions(PerformanceChannelName, defaultPerformanceInterval, opts)
	gen := newSynthetic(o.rand)
	c := &PerformanceChannel{}
	c.feed = feed[PerformanceUpdate]{
		name:      PerformanceChannelName,
		event:     PerformanceEvent,
		capacity:  PerformanceCapacity,
		interval:  o.interval,
		transport: o.transport,
		clock:     o.clock,
		logger:    *o.logger,
		metrics:   o.metrics,
		decode:    DecodePerformanceUpdate,
		generate:  gen.performanceUpdate,
	}
	c.feed.init(o.performanceSeed)
	return c
}

func (c *PerformanceChannel) Name() string { return PerformanceChannelName }

// Open subscribes and starts the synthetic generator. Cancelling ctx closes the handle.
func (c *PerformanceChannel) Open(ctx context.Context) (*Handle, error) {
	return c.feed.open(ctx)
}

// Broadcast publishes an update on the transport, or straight into the local window when
// the channel has no transport. Failures are logged and returned; there is no retry.
func (c *PerformanceChannel) Broadcast(ctx context.Context, update PerformanceUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}

	ch, gen, active := c.feed.currentChannel()
	if !active {
		c.feed.logger.Warn().Str("update_id", update.ID).Msg("broadcast on closed channel")
		return dasherrors.ErrChannelClosed
	}
	if c.feed.transport == nil {
		if !c.feed.deliver(gen, update, sourceLocal) {
			return dasherrors.ErrChannelClosed
		}
		return nil
	}
	if ch == nil {
		return dasherrors.ErrChannelClosed
	}

	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("%w: encode update %s: %w", dasherrors.ErrBroadcast, update.ID, err)
	}
	if err := ch.Send(ctx, Message{Type: MessageBroadcast, Event: PerformanceEvent, Payload: payload}); err != nil {
		c.feed.logger.Warn().Err(err).Str("update_id", update.ID).Msg("broadcast failed")
		return fmt.Errorf("%w: %w", dasherrors.ErrBroadcast, err)
	}
	return nil
}

// Updates returns the window, newest first
func (c *PerformanceChannel) Updates() []PerformanceUpdate {
	return c.feed.snapshot()
}

func (c *PerformanceChannel) Events() []Event {
	updates := c.feed.snapshot()
	events := make([]Event, len(updates))
	for i, u := range updates {
		events[i] = u
	}
	return events
}

func (c *PerformanceChannel) Status() ConnectionState {
	return c.feed.currentStatus()
}

func (c *PerformanceChannel) OnChange(fn func()) (cancel func()) {
	return c.feed.onChange(fn)
}
