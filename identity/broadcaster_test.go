package identity_test

import (
	"testing"

	"github.com/jrsteele09/go-dashboard-core/identity"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_EmitAndUnsubscribe(t *testing.T) {
	b := identity.NewBroadcaster()

	var got []identity.AuthEvent
	sub := b.Subscribe(func(event identity.AuthEvent, _ *identity.Session) {
		got = append(got, event)
	})
	require.Equal(t, 1, b.Len())

	b.Emit(identity.EventSignedIn, &identity.Session{User: identity.User{ID: "u1"}})
	sub.Unsubscribe()
	sub.Unsubscribe()
	b.Emit(identity.EventSignedOut, nil)

	require.Equal(t, []identity.AuthEvent{identity.EventSignedIn}, got)
	require.Equal(t, 0, b.Len())
}

func TestBroadcaster_HandlerRemovedDuringEmitIsSkipped(t *testing.T) {
	b := identity.NewBroadcaster()

	var second identity.Subscription
	calledSecond := false
	b.Subscribe(func(identity.AuthEvent, *identity.Session) {
		second.Unsubscribe()
	})
	second = b.Subscribe(func(identity.AuthEvent, *identity.Session) {
		calledSecond = true
	})

	b.Emit(identity.EventSignedIn, nil)
	require.False(t, calledSecond)
}

func TestSameIdentity(t *testing.T) {
	a := &identity.Session{AccessToken: "1", User: identity.User{ID: "u1"}}
	b := &identity.Session{AccessToken: "2", User: identity.User{ID: "u1"}}
	c := &identity.Session{User: identity.User{ID: "u2"}}

	require.True(t, identity.SameIdentity(a, b))
	require.False(t, identity.SameIdentity(a, c))
	require.False(t, identity.SameIdentity(a, nil))
	require.True(t, identity.SameIdentity(nil, nil))
	require.Equal(t, "", (*identity.Session)(nil).UserID())
}
