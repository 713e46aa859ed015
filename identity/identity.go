// Package identity is the contract with the hosted identity provider: sessions, auth state
// transitions and profile lookups.
package identity

import (
	"context"
	"time"

	"github.com/jrsteele09/go-dashboard-core/profiles"
)

// AuthEvent names an auth state transition reported by the backend
type AuthEvent string

const (
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// User is the identity provider's view of the caller
type User struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Session is an opaque token bundle. It is replaced wholesale on every auth event and
// never mutated in place.
type Session struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// UserID is nil-safe
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	return s.User.ID
}

// SameIdentity reports whether two sessions belong to the same user. Token refreshes keep
// the identity; a different user (or nil) does not.
func SameIdentity(a, b *Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.User.ID == b.User.ID
}

// AuthStateHandler receives auth transitions. session is nil after sign out.
type AuthStateHandler func(event AuthEvent, session *Session)

// Subscription is the handle returned by OnAuthStateChange. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// SignUpMetadata is registered with the backend and materialised into a profile out of band
type SignUpMetadata struct {
	Name string
	Role profiles.Role
}

// Backend is the hosted identity provider.
type Backend interface {
	// GetSession is the one-shot probe for an existing session; (nil, nil) when signed out.
	GetSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(handler AuthStateHandler) Subscription
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, metadata SignUpMetadata) error
	SignOut(ctx context.Context) error
	GetProfile(ctx context.Context, userID string) (*profiles.Profile, error)
}
