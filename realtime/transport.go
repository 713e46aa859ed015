package realtime

import (
	"context"
	"encoding/json"
)

// SubscribeStatus is reported by a transport to a channel's status callback
type SubscribeStatus string

const (
	StatusSubscribed   SubscribeStatus = "SUBSCRIBED"
	StatusChannelError SubscribeStatus = "CHANNEL_ERROR"
	StatusTimedOut     SubscribeStatus = "TIMED_OUT"
	StatusClosed       SubscribeStatus = "CLOSED"
)

// MessageBroadcast is the only message type the dashboard channels bind to
const MessageBroadcast = "broadcast"

// Message is the transport envelope
type Message struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Filter narrows a binding. Empty or "*" fields match anything.
type Filter struct {
	Event string
}

// Matches reports whether a message of type msgType matches a binding on eventType with f
func (f Filter) Matches(eventType string, msg Message) bool {
	if eventType != msg.Type {
		return false
	}
	return f.Event == "" || f.Event == "*" || f.Event == msg.Event
}

// StatusHandler receives subscription status changes. err is set for failures.
type StatusHandler func(status SubscribeStatus, err error)

// Channel is one named subscription on a transport.
type Channel interface {
	Name() string
	On(eventType string, filter Filter, handler func(Message)) Channel
	Subscribe(status StatusHandler) Channel
	Send(ctx context.Context, msg Message) error
}

// Transport hands out channels and releases them.
type Transport interface {
	Channel(name string) Channel
	RemoveChannel(ch Channel) error
}
