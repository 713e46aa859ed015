package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-dashboard-core/gate"
	"github.com/jrsteele09/go-dashboard-core/profiles"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyProfile stores the authorized caller's profile
	ContextKeyProfile ContextKey = "profile"
)

// RequireRole applies the route gate decision to a request. With no roles any resolved
// profile is admitted.
func (s *Server) RequireRole(roles ...profiles.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			snap := s.services.Session.Snapshot()
			decision := gate.Decide(snap, roles, s.gate)

			switch decision.State {
			case gate.StateLoading:
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, "session_loading", "session is still loading", http.StatusServiceUnavailable)
			case gate.StateUnauthenticated:
				writeRedirectError(w, "unauthenticated", decision.Target, http.StatusUnauthorized)
			case gate.StateProfilePending:
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, "profile_pending", "profile has not resolved yet", http.StatusServiceUnavailable)
			case gate.StateRoleMismatch:
				writeRedirectError(w, "forbidden", decision.Target, http.StatusForbidden)
			case gate.StateAuthorized:
				ctx := context.WithValue(r.Context(), ContextKeyProfile, snap.Profile)
				next(w, r.WithContext(ctx))
			}
		}
	}
}

// profileFromContext returns the profile injected by RequireRole
func profileFromContext(ctx context.Context) *profiles.Profile {
	p, _ := ctx.Value(ContextKeyProfile).(*profiles.Profile)
	return p
}
