package nats

import (
	"time"

	"github.com/google/uuid"
)

// Stream names.
const (
	StreamCalendar = "AICAL_CALENDAR"
)

// Subject constants.
const (
	SubjectCalendarPrefix = "aical.calendar" // aical.calendar.{created|deleted}
)

// Calendar change types.
const (
	CalendarEventCreated = "created"
	CalendarEventDeleted = "deleted"
)

// CalendarChange is published after a calendar event is created or deleted.
type CalendarChange struct {
	EventID   uuid.UUID  `json:"event_id"`
	UserID    string     `json:"user_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Source    string     `json:"source,omitempty"` // api, assistant
	Timestamp time.Time  `json:"timestamp"`
}
