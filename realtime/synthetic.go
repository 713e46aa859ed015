package realtime

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

type member struct {
	id         string
	name       string
	department string
}

var roster = []member{
	{"m-001", "Alex Johnson", "IT"},
	{"m-002", "Priya Patel", "IT"},
	{"m-003", "Sam Rivera", "HR"},
	{"m-004", "Jordan Lee", "Sales"},
	{"m-005", "Taylor Brooks", "Marketing"},
	{"m-006", "Casey Morgan", "Finance"},
	{"m-007", "Riley Chen", "Administration"},
	{"m-008", "Jamie Fox", "Sales"},
}

var categories = []string{"Communication", "Technical Skills", "Teamwork", "Leadership", "Productivity"}

type notificationTemplate struct {
	title   string
	message string
	kind    NotificationType
}

var notificationTemplates = []notificationTemplate{
	{"Performance review due", "Quarterly reviews for %s are due this week", NotificationWarning},
	{"New team member", "%s joined the team", NotificationInfo},
	{"Rating updated", "%s received an updated rating", NotificationSuccess},
	{"Sync failed", "Could not sync ratings for %s", NotificationError},
}

// synthetic produces plausible traffic for the generators. rand.Rand is not safe for
// concurrent use, hence the lock.
type synthetic struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newSynthetic(rnd *rand.Rand) *synthetic {
	return &synthetic{rnd: rnd}
}

func (s *synthetic) performanceUpdate(now time.Time) PerformanceUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := roster[s.rnd.Intn(len(roster))]
	old := 50 + s.rnd.Intn(46)
	next := clampRating(old + s.rnd.Intn(21) - 10)
	return PerformanceUpdate{
		ID:         uuid.NewString(),
		MemberID:   m.id,
		MemberName: m.name,
		Category:   categories[s.rnd.Intn(len(categories))],
		OldRating:  old,
		NewRating:  next,
		UpdatedBy:  "System",
		Timestamp:  now,
		Department: m.department,
	}
}

func (s *synthetic) notification(now time.Time) Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmpl := notificationTemplates[s.rnd.Intn(len(notificationTemplates))]
	m := roster[s.rnd.Intn(len(roster))]
	subject := m.name
	if tmpl.kind == NotificationWarning {
		subject = m.department
	}
	return Notification{
		ID:        uuid.NewString(),
		Title:     tmpl.title,
		Message:   fmt.Sprintf(tmpl.message, subject),
		Type:      tmpl.kind,
		Timestamp: now,
	}
}

// SeedNotifications returns the starter notifications shown before any traffic arrives
func SeedNotifications(now time.Time) []Notification {
	return []Notification{
		{
			ID:        uuid.NewString(),
			Title:     "Welcome",
			Message:   "Live updates are enabled for your dashboard",
			Type:      NotificationInfo,
			Timestamp: now,
		},
		{
			ID:        uuid.NewString(),
			Title:     "Performance review due",
			Message:   "Quarterly reviews for IT are due this week",
			Type:      NotificationWarning,
			Timestamp: now.Add(-time.Hour),
		},
		{
			ID:        uuid.NewString(),
			Title:     "Rating updated",
			Message:   "Priya Patel received an updated rating",
			Type:      NotificationSuccess,
			Timestamp: now.Add(-2 * time.Hour),
			Read:      true,
		},
	}
}

func clampRating(r int) int {
	return max(0, min(100, r))
}
