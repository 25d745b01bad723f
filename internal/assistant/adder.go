package assistant

import (
	"context"
	"time"

	"github.com/aical-app/aical/internal/calendar"
)

// EventDraft is a validated candidate resolved to concrete instants.
type EventDraft struct {
	Title string    `json:"title"`
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
}

// EventAdder persists one event on behalf of the caller.
type EventAdder interface {
	AddEvent(ctx context.Context, draft EventDraft) error
}

type EventAdderFunc func(ctx context.Context, draft EventDraft) error

func (f EventAdderFunc) AddEvent(ctx context.Context, draft EventDraft) error {
	return f(ctx, draft)
}

// EventCreator is the calendar operation the assistant needs.
type EventCreator interface {
	Create(ctx context.Context, userID string, req *calendar.CreateEventRequest, source string) (*calendar.Event, error)
}

// CalendarAdder adds events to one user's calendar.
type CalendarAdder struct {
	Calendar EventCreator
	UserID   string
}

func (a CalendarAdder) AddEvent(ctx context.Context, draft EventDraft) error {
	if a.UserID == "" || a.Calendar == nil {
		return ErrUnauthenticated
	}
	_, err := a.Calendar.Create(ctx, a.UserID, &calendar.CreateEventRequest{
		Title:     draft.Title,
		StartTime: draft.Start,
		EndTime:   draft.End,
	}, calendar.SourceAssistant)
	return err
}
