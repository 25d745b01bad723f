// Package assistant runs the conversational scheduling workflow: chat replies
// backed by session memory, plan and single-event extraction, and applying
// the resulting candidates to a calendar.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aical-app/aical/internal/gemini"
	"github.com/aical-app/aical/internal/interpret"
	"github.com/aical-app/aical/internal/memory"
	"github.com/aical-app/aical/internal/prompt"
)

const DefaultPlanTurns = 20

// Model is the language model surface the assistant depends on. Ready
// reports configuration problems without a network call.
type Model interface {
	Ready() error
	CompleteJSON(ctx context.Context, contents []gemini.Content) (string, error)
	CompleteStream(ctx context.Context, contents []gemini.Content) (gemini.Stream, error)
}

type Service struct {
	store           memory.Store
	model           Model
	maxTurns        int
	planTurns       int
	loc             *time.Location
	defaultDuration time.Duration
	now             func() time.Time
}

type Option func(*Service)

func WithTurnLimits(maxTurns, planTurns int) Option {
	return func(s *Service) {
		if maxTurns > 0 {
			s.maxTurns = maxTurns
		}
		if planTurns > 0 {
			s.planTurns = planTurns
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithDefaultDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.defaultDuration = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store memory.Store, model Model, opts ...Option) *Service {
	s := &Service{
		store:           store,
		model:           model,
		maxTurns:        memory.DefaultMaxTurns,
		planTurns:       DefaultPlanTurns,
		loc:             time.UTC,
		defaultDuration: interpret.DefaultDuration,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chat records userText, streams the model's reply through onDelta and
// records the reply once the stream ends. Nothing is recorded when the model
// is not configured; otherwise the user turn is kept even when the model
// call fails.
func (s *Service) Chat(ctx context.Context, sessionID, userText string, onDelta func(string) error) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", invalidInput(reasonInvalidSession)
	}
	if strings.TrimSpace(userText) == "" {
		return "", invalidInput(reasonEmptyMessage)
	}
	if err := s.model.Ready(); err != nil {
		return "", modelError("chat", err)
	}

	history, err := s.store.LastN(ctx, sessionID, s.maxTurns)
	if err != nil {
		return "", newError(ErrorInternal, "reading chat history", err)
	}
	if _, err := s.store.Append(ctx, sessionID, s.turn(memory.RoleUser, userText), s.maxTurns); err != nil {
		return "", newError(ErrorInternal, "recording user turn", err)
	}

	stream, err := s.model.CompleteStream(ctx, prompt.Conversation(history, userText, prompt.ConversationLimit))
	if err != nil {
		return "", modelError("chat", err)
	}
	defer stream.Close()

	var reply strings.Builder
	for stream.Next() {
		delta := stream.Delta()
		if delta == "" {
			continue
		}
		reply.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return reply.String(), newError(ErrorInternal, "forwarding reply", err)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return reply.String(), modelError("chat", err)
	}

	text := strings.TrimSpace(reply.String())
	if text != "" {
		if _, err := s.store.Append(ctx, sessionID, s.turn(memory.RoleModel, text), s.maxTurns); err != nil {
			slog.Warn("recording model turn", "session_id", sessionID, "error", err)
		}
	}
	return reply.String(), nil
}

func (s *Service) ClearSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return invalidInput(reasonInvalidSession)
	}
	if err := s.store.Clear(ctx, sessionID); err != nil {
		return newError(ErrorInternal, "clearing session", err)
	}
	return nil
}

// Plan asks for a seven day plan from the session's recent history. It
// fails with ErrorMalformedOutput only when the model output holds no JSON
// value at all.
func (s *Service) Plan(ctx context.Context, sessionID string) ([]interpret.Candidate, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, invalidInput(reasonInvalidSession)
	}

	history, err := s.store.LastN(ctx, sessionID, s.planTurns)
	if err != nil {
		return nil, newError(ErrorInternal, "reading chat history", err)
	}

	now := s.now().In(s.loc)
	raw, err := s.model.CompleteJSON(ctx, []gemini.Content{gemini.UserContent(prompt.Plan(history, now))})
	if err != nil {
		return nil, modelError("plan", err)
	}
	return s.parsePlan(raw, now)
}

// PlanFromText is the one-shot variant of Plan, built from userText alone.
func (s *Service) PlanFromText(ctx context.Context, userText string) ([]interpret.Candidate, error) {
	if strings.TrimSpace(userText) == "" {
		return nil, invalidInput(reasonEmptyMessage)
	}

	now := s.now().In(s.loc)
	raw, err := s.model.CompleteJSON(ctx, []gemini.Content{gemini.UserContent(prompt.FallbackPlan(userText, now))})
	if err != nil {
		return nil, modelError("plan", err)
	}
	return s.parsePlan(raw, now)
}

func (s *Service) parsePlan(raw string, now time.Time) ([]interpret.Candidate, error) {
	plan, err := interpret.ParsePlan(raw, now, s.loc)
	if err != nil {
		if errors.Is(err, interpret.ErrMalformed) {
			return nil, newError(ErrorMalformedOutput, reasonMalformed, err)
		}
		return nil, newError(ErrorInternal, "parsing plan", err)
	}
	return plan, nil
}

// Parse extracts a single explicit event from text. ok is false when the
// model found none.
func (s *Service) Parse(ctx context.Context, text string) (interpret.Candidate, bool, error) {
	if strings.TrimSpace(text) == "" {
		return interpret.Candidate{}, false, invalidInput(reasonInvalidText)
	}

	now := s.now().In(s.loc)
	raw, err := s.model.CompleteJSON(ctx, []gemini.Content{gemini.UserContent(prompt.SingleEvent(text, now))})
	if err != nil {
		return interpret.Candidate{}, false, modelError("parse", err)
	}
	c, ok := interpret.ExtractSingleEvent(raw, now, s.loc)
	return c, ok, nil
}

// Draft resolves a candidate to the instants sent to the calendar.
func (s *Service) Draft(c interpret.Candidate) EventDraft {
	start, end := c.Interval(s.defaultDuration)
	return EventDraft{Title: c.Title, Start: start, End: end}
}

// Location is the zone candidate dates and times are read in.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) turn(role memory.Role, text string) memory.Turn {
	return memory.Turn{Role: role, Text: text, At: s.now().UTC()}
}
