package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
)

// EventKind tags the Event union
type EventKind string

const (
	KindPerformanceUpdate EventKind = "performance_update"
	KindNotification      EventKind = "notification"
)

// Event is implemented only by PerformanceUpdate and Notification.
type Event interface {
	Kind() EventKind
	EventID() string
	OccurredAt() time.Time
	isEvent()
}

var (
	_ Event = PerformanceUpdate{}
	_ Event = Notification{}
)

// PerformanceUpdate records a rating change for a team member
type PerformanceUpdate struct {
	ID         string    `json:"id"`
	MemberID   string    `json:"member_id"`
	MemberName string    `json:"member_name"`
	Category   string    `json:"category"`
	OldRating  int       `json:"old_rating"`
	NewRating  int       `json:"new_rating"`
	UpdatedBy  string    `json:"updated_by"`
	Timestamp  time.Time `json:"timestamp"`
	Department string    `json:"department"`
}

func (PerformanceUpdate) Kind() EventKind         { return KindPerformanceUpdate }
func (u PerformanceUpdate) EventID() string       { return u.ID }
func (u PerformanceUpdate) OccurredAt() time.Time { return u.Timestamp }
func (PerformanceUpdate) isEvent()                {}

func (u PerformanceUpdate) Validate() error {
	switch {
	case u.ID == "":
		return fmt.Errorf("%w: performance update id is required", dasherrors.ErrInvalidEvent)
	case u.MemberID == "":
		return fmt.Errorf("%w: member id is required", dasherrors.ErrInvalidEvent)
	case u.Category == "":
		return fmt.Errorf("%w: category is required", dasherrors.ErrInvalidEvent)
	case !validRating(u.OldRating) || !validRating(u.NewRating):
		return fmt.Errorf("%w: ratings must be within [0,100]", dasherrors.ErrInvalidEvent)
	}
	return nil
}

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError:
		return true
	}
	return false
}

// Notification is a user facing message. Only Read changes after delivery.
type Notification struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
}

func (Notification) Kind() EventKind         { return KindNotification }
func (n Notification) EventID() string       { return n.ID }
func (n Notification) OccurredAt() time.Time { return n.Timestamp }
func (Notification) isEvent()                {}

func (n Notification) Validate() error {
	switch {
	case n.ID == "":
		return fmt.Errorf("%w: notification id is required", dasherrors.ErrInvalidEvent)
	case n.Title == "":
		return fmt.Errorf("%w: notification title is required", dasherrors.ErrInvalidEvent)
	case !n.Type.Valid():
		return fmt.Errorf("%w: unknown notification type %q", dasherrors.ErrInvalidEvent, n.Type)
	}
	return nil
}

// DecodePerformanceUpdate rejects unknown fields and out of range ratings
func DecodePerformanceUpdate(payload json.RawMessage) (PerformanceUpdate, error) {
	var u PerformanceUpdate
	if err := decodeStrict(payload, &u); err != nil {
		return PerformanceUpdate{}, err
	}
	return u, u.Validate()
}

func DecodeNotification(payload json.RawMessage) (Notification, error) {
	var n Notification
	if err := decodeStrict(payload, &n); err != nil {
		return Notification{}, err
	}
	return n, n.Validate()
}

func decodeStrict(payload json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", dasherrors.ErrInvalidEvent, err)
	}
	return nil
}

func validRating(r int) bool {
	return r >= 0 && r <= 100
}
