package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-dashboard-core/gate"
	"github.com/jrsteele09/go-dashboard-core/identity"
	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
	"github.com/jrsteele09/go-dashboard-core/profiles"
	"github.com/jrsteele09/go-dashboard-core/session"
)

type sessionResponse struct {
	Authenticated bool              `json:"authenticated"`
	Loading       bool              `json:"loading"`
	User          *identity.User    `json:"user,omitempty"`
	Profile       *profiles.Profile `json:"profile,omitempty"`
	ProfileError  string            `json:"profile_error,omitempty"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`
	Decision      string            `json:"decision"`
	Redirect      string            `json:"redirect,omitempty"`
}

func (s *Server) newSessionResponse(snap session.Snapshot) sessionResponse {
	d := gate.Decide(snap, nil, s.gate)
	resp := sessionResponse{
		Authenticated: snap.Authenticated(),
		Loading:       snap.Loading,
		User:          snap.User,
		Profile:       snap.Profile,
		Decision:      d.State.String(),
		Redirect:      d.Target,
	}
	if snap.ProfileErr != nil {
		resp.ProfileError = snap.ProfileErr.Error()
	}
	if snap.Session != nil && !snap.Session.ExpiresAt.IsZero() {
		expires := snap.Session.ExpiresAt
		resp.ExpiresAt = &expires
	}
	return resp
}

// awaitProfile waits, at most the configured profile wait, for the signed in user's
// profile lookup to finish.
func (s *Server) awaitProfile(ctx context.Context) session.Snapshot {
	ctx, cancel := context.WithTimeout(ctx, s.config.GetProfileWait())
	defer cancel()
	snap, _ := s.services.Session.WaitFor(ctx, func(snap session.Snapshot) bool {
		return snap.User != nil && (snap.Profile != nil || snap.ProfileErr != nil)
	})
	return snap
}

func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.newSessionResponse(s.services.Session.Snapshot()))
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, "invalid_request", "malformed login request", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Email) == "" || req.Password == "" {
			writeJSONError(w, "invalid_request", "email and password are required", http.StatusBadRequest)
			return
		}

		if err := s.services.Session.SignIn(r.Context(), req.Email, req.Password); err != nil {
			if errors.Is(err, dasherrors.ErrInvalidCredentials) {
				writeJSONError(w, "invalid_credentials", "invalid email or password", http.StatusUnauthorized)
				return
			}
			s.logError(r.Method, r.URL.Path, err)
			writeJSONError(w, "identity_unavailable", "sign in failed", http.StatusBadGateway)
			return
		}

		writeJSON(w, http.StatusOK, s.newSessionResponse(s.awaitProfile(r.Context())))
	}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, "invalid_request", "malformed sign up request", http.StatusBadRequest)
			return
		}
		role, ok := profiles.ParseRole(req.Role)
		if !ok {
			writeJSONError(w, "invalid_role", "role must be one of admin, manager, teamlead", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeJSONError(w, "invalid_request", "name is required", http.StatusBadRequest)
			return
		}

		err := s.services.Session.SignUp(r.Context(), req.Email, req.Password, strings.TrimSpace(req.Name), role)
		if err != nil {
			if errors.Is(err, dasherrors.ErrSignUpRejected) {
				writeJSONError(w, "sign_up_rejected", err.Error(), http.StatusBadRequest)
				return
			}
			s.logError(r.Method, r.URL.Path, err)
			writeJSONError(w, "identity_unavailable", "sign up failed", http.StatusBadGateway)
			return
		}

		writeJSON(w, http.StatusCreated, s.newSessionResponse(s.awaitProfile(r.Context())))
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.services.Session.SignOut(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}
