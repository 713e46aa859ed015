package fakebackend_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/go-dashboard-core/identity"
	"github.com/jrsteele09/go-dashboard-core/identity/fakebackend"
	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
	"github.com/jrsteele09/go-dashboard-core/profiles"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "manager@example.com"
	testPassword = "Passw0rd1"
	testName     = "Morgan Manager"
)

type recordedEvent struct {
	event  identity.AuthEvent
	userID string
}

func subscribe(t *testing.T, b *fakebackend.Backend) *[]recordedEvent {
	t.Helper()
	var events []recordedEvent
	sub := b.OnAuthStateChange(func(event identity.AuthEvent, session *identity.Session) {
		events = append(events, recordedEvent{event: event, userID: session.UserID()})
	})
	t.Cleanup(sub.Unsubscribe)
	return &events
}

func TestBackend_SignInEmitsSignedIn(t *testing.T) {
	ctx := context.Background()
	b := fakebackend.New(fakebackend.WithSecret("test-secret"))
	userID, err := b.Seed(ctx, testEmail, testPassword, testName, profiles.RoleManager)
	require.NoError(t, err)
	events := subscribe(t, b)

	session, err := b.SignInWithPassword(ctx, "  MANAGER@example.com ", testPassword)
	require.NoError(t, err)
	require.Equal(t, userID, session.UserID())
	require.Equal(t, []recordedEvent{{identity.EventSignedIn, userID}}, *events)

	subject, err := b.VerifyAccessToken(session.AccessToken)
	require.NoError(t, err)
	require.Equal(t, userID, subject)

	probed, err := b.GetSession(ctx)
	require.NoError(t, err)
	require.Equal(t, session, probed)
}

func TestBackend_SignInRejectsBadPassword(t *testing.T) {
	ctx := context.Background()
	b := fakebackend.New()
	_, err := b.Seed(ctx, testEmail, testPassword, testName, profiles.RoleManager)
	require.NoError(t, err)
	events := subscribe(t, b)

	_, err = b.SignInWithPassword(ctx, testEmail, "wrong")
	require.ErrorIs(t, err, dasherrors.ErrInvalidCredentials)

	_, err = b.SignInWithPassword(ctx, "nobody@example.com", testPassword)
	require.ErrorIs(t, err, dasherrors.ErrInvalidCredentials)
	require.Empty(t, *events)
}

func TestBackend_SignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("materialises profile and signs in", func(t *testing.T) {
		b := fakebackend.New()
		events := subscribe(t, b)

		err := b.SignUp(ctx, "lead@example.com", testPassword, identity.SignUpMetadata{Name: "Lee", Role: profiles.RoleTeamLead})
		require.NoError(t, err)
		require.Len(t, *events, 1)

		p, err := b.GetProfile(ctx, (*events)[0].userID)
		require.NoError(t, err)
		require.Equal(t, profiles.RoleTeamLead, p.Role)
		require.Equal(t, "Lee", p.Name)
	})

	t.Run("deferred profile is absent until materialised", func(t *testing.T) {
		var pending func()
		b := fakebackend.New(fakebackend.WithDeferredProfiles(func(fn func()) { pending = fn }))
		events := subscribe(t, b)

		require.NoError(t, b.SignUp(ctx, "lead@example.com", testPassword, identity.SignUpMetadata{Name: "Lee", Role: profiles.RoleTeamLead}))
		userID := (*events)[0].userID

		_, err := b.GetProfile(ctx, userID)
		require.ErrorIs(t, err, dasherrors.ErrProfileNotFound)

		pending()
		_, err = b.GetProfile(ctx, userID)
		require.NoError(t, err)
	})

	t.Run("rejections", func(t *testing.T) {
		b := fakebackend.New()
		require.NoError(t, b.SignUp(ctx, "a@example.com", testPassword, identity.SignUpMetadata{Role: profiles.RoleAdmin}))

		err := b.SignUp(ctx, "a@example.com", testPassword, identity.SignUpMetadata{Role: profiles.RoleAdmin})
		require.ErrorIs(t, err, dasherrors.ErrSignUpRejected)

		err = b.SignUp(ctx, "b@example.com", "weak", identity.SignUpMetadata{Role: profiles.RoleAdmin})
		require.ErrorIs(t, err, dasherrors.ErrSignUpRejected)

		err = b.SignUp(ctx, "c@example.com", testPassword, identity.SignUpMetadata{Role: "owner"})
		require.ErrorIs(t, err, dasherrors.ErrSignUpRejected)

		err = b.SignUp(ctx, "not-an-email", testPassword, identity.SignUpMetadata{Role: profiles.RoleAdmin})
		require.ErrorIs(t, err, dasherrors.ErrSignUpRejected)
	})
}

func TestBackend_SignOut(t *testing.T) {
	ctx := context.Background()

	t.Run("clears session and emits once", func(t *testing.T) {
		b := fakebackend.New()
		_, err := b.Seed(ctx, testEmail, testPassword, testName, profiles.RoleManager)
		require.NoError(t, err)
		_, err = b.SignInWithPassword(ctx, testEmail, testPassword)
		require.NoError(t, err)
		events := subscribe(t, b)

		require.NoError(t, b.SignOut(ctx))
		require.NoError(t, b.SignOut(ctx))
		require.Equal(t, []recordedEvent{{identity.EventSignedOut, ""}}, *events)

		session, err := b.GetSession(ctx)
		require.NoError(t, err)
		require.Nil(t, session)
	})

	t.Run("remote failure still drops the session", func(t *testing.T) {
		b := fakebackend.New(fakebackend.WithSignOutFailure(errors.New("network down")))
		_, err := b.Seed(ctx, testEmail, testPassword, testName, profiles.RoleManager)
		require.NoError(t, err)
		_, err = b.SignInWithPassword(ctx, testEmail, testPassword)
		require.NoError(t, err)

		require.Error(t, b.SignOut(ctx))
		session, err := b.GetSession(ctx)
		require.NoError(t, err)
		require.Nil(t, session)
	})
}

func TestBackend_ExpiredSessionProbesAsSignedOut(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	b := fakebackend.New(
		fakebackend.WithNowTime(func() time.Time { return now }),
		fakebackend.WithTokenTTL(time.Minute),
	)
	_, err := b.Seed(ctx, testEmail, testPassword, testName, profiles.RoleManager)
	require.NoError(t, err)
	_, err = b.SignInWithPassword(ctx, testEmail, testPassword)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	session, err := b.GetSession(ctx)
	require.NoError(t, err)
	require.Nil(t, session)
}

func TestBackend_RefreshSession(t *testing.T) {
	ctx := context.Background()
	b := fakebackend.New()
	userID, err := b.Seed(ctx, testEmail, testPassword, testName, profiles.RoleManager)
	require.NoError(t, err)

	_, err = b.RefreshSession(ctx)
	require.ErrorIs(t, err, dasherrors.ErrNoSession)

	first, err := b.SignInWithPassword(ctx, testEmail, testPassword)
	require.NoError(t, err)
	events := subscribe(t, b)

	second, err := b.RefreshSession(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.AccessToken, second.AccessToken)
	require.True(t, identity.SameIdentity(first, second))
	require.Equal(t, []recordedEvent{{identity.EventTokenRefreshed, userID}}, *events)
}

func TestBackend_ProfileLookupHook(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	b := fakebackend.New(fakebackend.WithProfileLookupHook(func(context.Context, string) error { return boom }))
	userID, err := b.Seed(ctx, testEmail, testPassword, testName, profiles.RoleManager)
	require.NoError(t, err)

	_, err = b.GetProfile(ctx, userID)
	require.ErrorIs(t, err, boom)
}
