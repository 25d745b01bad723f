package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aical-app/aical/internal/metrics"
	inats "github.com/aical-app/aical/internal/nats"
)

var (
	ErrNotFound     = errors.New("event not found")
	ErrInvalidRange = errors.New("end_time must be after start_time")
	ErrEmptyTitle   = errors.New("title is required")
)

// Notifier receives calendar change notifications. Failures are logged and
// never fail the mutation.
type Notifier interface {
	PublishCalendarChange(ctx context.Context, change inats.CalendarChange) error
}

type Service struct {
	repo     Repository
	notifier Notifier
	now      func() time.Time
}

// NewService creates a Service. notifier may be nil.
func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier, now: time.Now}
}

func (s *Service) Create(ctx context.Context, userID string, req *CreateEventRequest, source string) (*Event, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, ErrInvalidRange
	}

	ev := &Event{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		StartTime:   req.StartTime.UTC(),
		EndTime:     req.EndTime.UTC(),
		CreatedAt:   s.now().UTC(),
	}

	if err := s.repo.Create(ctx, ev); err != nil {
		return nil, err
	}
	metrics.CalendarEventsTotal.WithLabelValues("create").Inc()

	s.notify(ctx, inats.CalendarChange{
		EventID:   ev.ID,
		UserID:    userID,
		Type:      inats.CalendarEventCreated,
		Title:     ev.Title,
		StartTime: &ev.StartTime,
		EndTime:   &ev.EndTime,
		Source:    source,
		Timestamp: ev.CreatedAt,
	})
	return ev, nil
}

func (s *Service) List(ctx context.Context, userID string, params ListParams) ([]*Event, error) {
	events, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, fmt.Errorf("listing events for user: %w", err)
	}
	return events, nil
}

func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	found, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	metrics.CalendarEventsTotal.WithLabelValues("delete").Inc()

	s.notify(ctx, inats.CalendarChange{
		EventID:   id,
		UserID:    userID,
		Type:      inats.CalendarEventDeleted,
		Source:    SourceAPI,
		Timestamp: s.now().UTC(),
	})
	return nil
}

func (s *Service) notify(ctx context.Context, change inats.CalendarChange) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishCalendarChange(ctx, change); err != nil {
		slog.Warn("publishing calendar change", "error", err, "event_id", change.EventID, "type", change.Type)
	}
}
