package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aical-app/aical/internal/interpret"
	"github.com/aical-app/aical/internal/metrics"
)

type State string

const (
	StateUserTurnRecorded          State = "user_turn_recorded"
	StateStreamingReply            State = "streaming_reply"
	StateReplyRecorded             State = "reply_recorded"
	StateDirectExtractionAttempted State = "direct_extraction_attempted"
	StatePlanRequested             State = "plan_requested"
	StateDone                      State = "done"
)

const whenLayout = "Mon Jan 2, 2006 3:04 PM"

// Failure is a candidate the calendar refused.
type Failure struct {
	Title string `json:"title"`
	Error string `json:"error"`
	err   error
}

// Outcome summarizes one submission. State is the last state reached; a
// non-empty Error means the workflow stopped there.
type Outcome struct {
	SessionID string       `json:"sessionId"`
	State     State        `json:"state"`
	Direct    bool         `json:"direct"`
	Planner   string       `json:"planner,omitempty"`
	Reply     string       `json:"reply"`
	Added     []EventDraft `json:"added"`
	Failed    []Failure    `json:"failed"`
	Error     string       `json:"error,omitempty"`
}

// Sink receives the user-visible output of a submission in order.
type Sink interface {
	Delta(text string) error
	Notice(text string) error
	Summary(out Outcome) error
}

// Orchestrator drives chat, direct extraction and planning for one message.
type Orchestrator struct {
	svc      *Service
	planners []Planner
}

// NewOrchestrator uses the history planner followed by the one-shot planner
// unless planners are given.
func NewOrchestrator(svc *Service, planners ...Planner) *Orchestrator {
	if len(planners) == 0 {
		planners = []Planner{HistoryPlanner(svc), OneShotPlanner(svc)}
	}
	return &Orchestrator{svc: svc, planners: planners}
}

// Submit runs the full workflow for userText. The returned error is set only
// when the input is rejected before any work starts; every later failure is
// reported through sink notices and the Outcome.
func (o *Orchestrator) Submit(ctx context.Context, sessionID, userText string, adder EventAdder, sink Sink) (Outcome, error) {
	out := Outcome{
		SessionID: sessionID,
		Added:     []EventDraft{},
		Failed:    []Failure{},
	}
	if adder == nil {
		adder = EventAdderFunc(func(context.Context, EventDraft) error { return ErrUnauthenticated })
	}

	out.State = StateUserTurnRecorded
	reply, err := o.svc.Chat(ctx, sessionID, userText, func(delta string) error {
		out.State = StateStreamingReply
		return sink.Delta(delta)
	})
	if err != nil {
		if CodeOf(err) == ErrorInvalidInput {
			metrics.AssistantSubmissionsTotal.WithLabelValues("invalid").Inc()
			return out, err
		}
		slog.Warn("assistant chat failed", "session_id", sessionID, "error", err)
		out.Error = SanitizeError(err)
		o.notice(sink, "⚠️ "+out.Error)
		return o.finish(sink, out, "failed"), nil
	}
	out.Reply = reply
	out.State = StateReplyRecorded

	if Classify(userText).Direct {
		out.Direct = true
		out.State = StateDirectExtractionAttempted
		if draft, ok := o.addDirect(ctx, userText, adder); ok {
			out.Added = append(out.Added, draft)
			out.State = StateDone
			o.notice(sink, fmt.Sprintf("✅ Added 1 event: %s on %s.", draft.Title, o.when(draft)))
			return o.finish(sink, out, "direct"), nil
		}
	}

	out.State = StatePlanRequested
	plan, planner, err := o.plan(ctx, sessionID, userText)
	out.Planner = planner
	if err != nil {
		out.Error = SanitizeError(err)
		o.notice(sink, "⚠️ Unable to schedule. Details: "+out.Error)
		return o.finish(sink, out, "failed"), nil
	}

	for _, c := range plan {
		draft := o.svc.Draft(c)
		if err := adder.AddEvent(ctx, draft); err != nil {
			slog.Warn("adding planned event", "session_id", sessionID, "title", draft.Title, "error", err)
			metrics.EventCandidatesTotal.WithLabelValues(planner, "failed").Inc()
			out.Failed = append(out.Failed, Failure{Title: draft.Title, Error: err.Error(), err: err})
			continue
		}
		metrics.EventCandidatesTotal.WithLabelValues(planner, "added").Inc()
		out.Added = append(out.Added, draft)
	}

	if len(out.Added) > 0 {
		o.notice(sink, o.scheduledNotice(out.Added))
	}
	if len(out.Failed) > 0 {
		o.notice(sink, failedNotice(out.Failed))
	}

	out.State = StateDone
	return o.finish(sink, out, "planned"), nil
}

// addDirect extracts and adds a single event. Any failure sends the
// request on to the planners.
func (o *Orchestrator) addDirect(ctx context.Context, userText string, adder EventAdder) (EventDraft, bool) {
	c, ok, err := o.svc.Parse(ctx, userText)
	if err != nil {
		slog.Debug("direct extraction failed", "error", err)
		return EventDraft{}, false
	}
	if !ok {
		metrics.EventCandidatesTotal.WithLabelValues("direct", "rejected").Inc()
		return EventDraft{}, false
	}

	draft := o.svc.Draft(c)
	if err := adder.AddEvent(ctx, draft); err != nil {
		slog.Warn("adding direct event", "title", draft.Title, "error", err)
		metrics.EventCandidatesTotal.WithLabelValues("direct", "failed").Inc()
		return EventDraft{}, false
	}
	metrics.EventCandidatesTotal.WithLabelValues("direct", "added").Inc()
	return draft, true
}

// plan returns the first planner result that did not fail. The first
// planner's error is returned when all of them failed, and also when a
// fallback ran after a failure and produced nothing.
func (o *Orchestrator) plan(ctx context.Context, sessionID, userText string) ([]interpret.Candidate, string, error) {
	var firstErr error
	for _, p := range o.planners {
		plan, err := p.Plan(ctx, sessionID, userText)
		if err == nil {
			if len(plan) == 0 && firstErr != nil {
				return nil, p.Name(), firstErr
			}
			return plan, p.Name(), nil
		}
		slog.Warn("planner failed", "planner", p.Name(), "session_id", sessionID, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = errors.New("no planner configured")
	}
	return nil, "", firstErr
}

func (o *Orchestrator) when(d EventDraft) string {
	return d.Start.In(o.svc.Location()).Format(whenLayout)
}

func (o *Orchestrator) scheduledNotice(added []EventDraft) string {
	lines := make([]string, 0, len(added)+1)
	lines = append(lines, fmt.Sprintf("🗓️ Scheduled %d item(s):", len(added)))
	for _, d := range added {
		lines = append(lines, fmt.Sprintf("• %s on %s", d.Title, o.when(d)))
	}
	return strings.Join(lines, "\n")
}

func failedNotice(failed []Failure) string {
	parts := make([]string, 0, len(failed))
	hint := ""
	for _, f := range failed {
		msg := f.Error
		if msg == "" {
			msg = "add failed"
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", f.Title, msg))
		if isUnauthorized(f) {
			hint = "Please sign in and try again. "
		}
	}
	return fmt.Sprintf("Note: %d add(s) failed. %s%s", len(failed), hint, strings.Join(parts, "; "))
}

func isUnauthorized(f Failure) bool {
	if f.err != nil && errors.Is(f.err, ErrUnauthenticated) {
		return true
	}
	return strings.Contains(strings.ToLower(f.Error), "unauthorized")
}

func (o *Orchestrator) notice(sink Sink, text string) {
	if err := sink.Notice(text); err != nil {
		slog.Debug("delivering notice", "error", err)
	}
}

func (o *Orchestrator) finish(sink Sink, out Outcome, result string) Outcome {
	metrics.AssistantSubmissionsTotal.WithLabelValues(result).Inc()
	if err := sink.Summary(out); err != nil {
		slog.Debug("delivering summary", "error", err)
	}
	return out
}
