package session

import (
	"github.com/jrsteele09/go-dashboard-core/identity"
	"github.com/jrsteele09/go-dashboard-core/profiles"
)

// Snapshot is the read-only view of "who is the caller".
//
// Profile is nil both when the profile is genuinely absent and when the lookup failed;
// ProfileErr tells the two apart for diagnostics. Version increases with every mutation so
// consumers receiving snapshots out of order can drop stale ones.
type Snapshot struct {
	User       *identity.User    `json:"user"`
	Session    *identity.Session `json:"session"`
	Profile    *profiles.Profile `json:"profile"`
	Loading    bool              `json:"loading"`
	ProfileErr error             `json:"-"`
	Version    uint64            `json:"version"`
}

// Authenticated reports whether a user is present
func (s Snapshot) Authenticated() bool {
	return s.User != nil
}

// Listener receives the snapshot produced by a mutation
type Listener func(Snapshot)

// Source is what gates and channel activators consume. *Store implements it.
type Source interface {
	Snapshot() Snapshot
	OnChange(listener Listener) (cancel func())
}

func sameSnapshot(a, b Snapshot) bool {
	if a.Session != b.Session || a.Profile != b.Profile || a.Loading != b.Loading || a.ProfileErr != b.ProfileErr {
		return false
	}
	if a.User == nil || b.User == nil {
		return a.User == b.User
	}
	return a.User.ID == b.User.ID && a.User.Email == b.User.Email
}
