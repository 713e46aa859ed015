// Package gate decides whether a guarded surface may render for the current session and
// issues the corresponding navigation.
package gate

import (
	"github.com/jrsteele09/go-dashboard-core/profiles"
	"github.com/jrsteele09/go-dashboard-core/session"
)

type State int

const (
	StateLoading State = iota
	StateUnauthenticated
	StateProfilePending
	StateRoleMismatch
	StateAuthorized
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateProfilePending:
		return "profile_pending"
	case StateRoleMismatch:
		return "role_mismatch"
	case StateAuthorized:
		return "authorized"
	}
	return "unknown"
}

// Routes maps decisions to navigation targets
type Routes struct {
	Login    string
	RoleHome map[profiles.Role]string
}

func DefaultRoutes() Routes {
	return Routes{
		Login: "/login",
		RoleHome: map[profiles.Role]string{
			profiles.RoleAdmin:    "/admin",
			profiles.RoleManager:  "/manager",
			profiles.RoleTeamLead: "/teamlead",
		},
	}
}

// HomeFor returns the role home route, falling back to the login route for unknown roles.
func (r Routes) HomeFor(role profiles.Role) string {
	if home, ok := r.RoleHome[role]; ok {
		return home
	}
	return r.Login
}

// Decision is the outcome for one snapshot. Target is set for the states that navigate.
type Decision struct {
	State  State
	Target string
}

// Navigates reports whether the decision carries a navigation side effect
func (d Decision) Navigates() bool {
	return d.Target != ""
}

// Decide is the pure decision function. An empty required set admits any profile.
func Decide(snap session.Snapshot, required []profiles.Role, routes Routes) Decision {
	switch {
	case snap.Loading:
		return Decision{State: StateLoading}
	case snap.User == nil:
		return Decision{State: StateUnauthenticated, Target: routes.Login}
	case snap.Profile == nil:
		return Decision{State: StateProfilePending}
	case len(required) > 0 && !snap.Profile.HasRole(required...):
		return Decision{State: StateRoleMismatch, Target: routes.HomeFor(snap.Profile.Role)}
	}
	return Decision{State: StateAuthorized}
}
