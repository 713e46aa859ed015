package identity

import (
	"sync"

	"github.com/jrsteele09/go-dashboard-core/internal/observers"
)

// Broadcaster fans auth transitions out to subscribed handlers. Backends embed it.
type Broadcaster struct {
	handlers observers.Set[AuthStateHandler]
}

type subscription struct {
	once sync.Once
	fn   func()
}

func (s *subscription) Unsubscribe() { s.once.Do(s.fn) }

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

func (b *Broadcaster) Subscribe(handler AuthStateHandler) Subscription {
	return &subscription{fn: b.handlers.Add(handler)}
}

// Emit calls handlers in subscription order on the caller's goroutine. A handler removed
// while Emit is running is skipped.
func (b *Broadcaster) Emit(event AuthEvent, session *Session) {
	b.handlers.Each(func(handler AuthStateHandler) {
		handler(event, session)
	})
}

func (b *Broadcaster) Len() int {
	return b.handlers.Len()
}
