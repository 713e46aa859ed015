package realtime

import "context"

// NotificationChannel carries notifications. Generated and received notifications are
// kept in a window of NotificationCapacity entries; the seed is kept as given until the
// first delivery.
type NotificationChannel struct {
	feed feed[Notification]
}

func NewNotificationChannel(opts ...Option) *NotificationChannel {
	o := buildOptions(NotificationChannelName, defaultNotificationInterval, opts)
	gen := newSynthetic(o.rand)
	c := &NotificationChannel{}
	c.feed = feed[Notification]{
		name:      NotificationChannelName,
		event:     NotificationEvent,
		capacity:  NotificationCapacity,
		interval:  o.interval,
		transport: o.transport,
		clock:     o.clock,
		logger:    *o.logger,
		metrics:   o.metrics,
		decode:    DecodeNotification,
		generate:  gen.notification,
	}
	c.feed.init(o.notificationSeed)
	return c
}

func (c *NotificationChannel) Name() string { return NotificationChannelName }

func (c *NotificationChannel) Open(ctx context.Context) (*Handle, error) {
	return c.feed.open(ctx)
}

// MarkRead flags one notification as read. Unknown ids are ignored.
func (c *NotificationChannel) MarkRead(id string) {
	c.feed.update(func(items []Notification) bool {
		for i := range items {
			if items[i].ID == id {
				if items[i].Read {
					return false
				}
				items[i].Read = true
				return true
			}
		}
		return false
	})
}

func (c *NotificationChannel) MarkAllRead() {
	c.feed.update(func(items []Notification) bool {
		changed := false
		for i := range items {
			if !items[i].Read {
				items[i].Read = true
				changed = true
			}
		}
		return changed
	})
}

func (c *NotificationChannel) UnreadCount() int {
	n := 0
	for _, item := range c.feed.snapshot() {
		if !item.Read {
			n++
		}
	}
	return n
}

// Notifications returns the list, newest first
func (c *NotificationChannel) Notifications() []Notification {
	return c.feed.snapshot()
}

func (c *NotificationChannel) Events() []Event {
	items := c.feed.snapshot()
	events := make([]Event, len(items))
	for i, n := range items {
		events[i] = n
	}
	return events
}

func (c *NotificationChannel) Status() ConnectionState {
	return c.feed.currentStatus()
}

func (c *NotificationChannel) OnChange(fn func()) (cancel func()) {
	return c.feed.onChange(fn)
}
