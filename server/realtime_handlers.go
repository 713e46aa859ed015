package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
	"github.com/jrsteele09/go-dashboard-core/realtime"
)

type performanceResponse struct {
	Status  realtime.ConnectionState     `json:"status"`
	Updates []realtime.PerformanceUpdate `json:"updates"`
}

type notificationsResponse struct {
	Status        realtime.ConnectionState `json:"status"`
	Unread        int                      `json:"unread"`
	Notifications []realtime.Notification  `json:"notifications"`
}

type ratingRequest struct {
	MemberID   string `json:"member_id"`
	MemberName string `json:"member_name"`
	Category   string `json:"category"`
	OldRating  int    `json:"old_rating"`
	NewRating  int    `json:"new_rating"`
	Department string `json:"department"`
}

func (s *Server) PerformanceListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		perf := s.services.Performance
		writeJSON(w, http.StatusOK, performanceResponse{Status: perf.Status(), Updates: nonNil(perf.Updates())})
	}
}

// PerformanceBroadcastHandler publishes a rating change made by the caller
func (s *Server) PerformanceBroadcastHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ratingRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSONError(w, "invalid_request", "malformed rating update", http.StatusBadRequest)
			return
		}

		updatedBy := "unknown"
		if p := profileFromContext(r.Context()); p != nil {
			updatedBy = p.Name
		}
		update := realtime.PerformanceUpdate{
			ID:         uuid.NewString(),
			MemberID:   req.MemberID,
			MemberName: req.MemberName,
			Category:   req.Category,
			OldRating:  req.OldRating,
			NewRating:  req.NewRating,
			UpdatedBy:  updatedBy,
			Timestamp:  time.Now().UTC(),
			Department: req.Department,
		}

		err := s.services.Performance.Broadcast(r.Context(), update)
		switch {
		case err == nil:
			writeJSON(w, http.StatusAccepted, update)
		case errors.Is(err, dasherrors.ErrInvalidEvent):
			writeJSONError(w, "invalid_update", err.Error(), http.StatusBadRequest)
		case errors.Is(err, dasherrors.ErrChannelClosed):
			writeJSONError(w, "channel_closed", "performance channel is not open", http.StatusServiceUnavailable)
		default:
			writeJSONError(w, "broadcast_failed", "could not publish update", http.StatusBadGateway)
		}
	}
}

func (s *Server) NotificationsListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.notificationsResponse())
	}
}

func (s *Server) NotificationReadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.services.Notifications.MarkRead(r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) NotificationsReadAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.services.Notifications.MarkAllRead()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) notificationsResponse() notificationsResponse {
	n := s.services.Notifications
	return notificationsResponse{
		Status:        n.Status(),
		Unread:        n.UnreadCount(),
		Notifications: nonNil(n.Notifications()),
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
