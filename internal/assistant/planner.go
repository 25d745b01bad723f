package assistant

import (
	"context"

	"github.com/aical-app/aical/internal/interpret"
)

// Planner turns a session or a single request into event candidates.
type Planner interface {
	Name() string
	Plan(ctx context.Context, sessionID, userText string) ([]interpret.Candidate, error)
}

type historyPlanner struct {
	svc *Service
}

// HistoryPlanner plans from the session's recent chat history.
func HistoryPlanner(svc *Service) Planner {
	return historyPlanner{svc: svc}
}

func (historyPlanner) Name() string { return "history" }

func (p historyPlanner) Plan(ctx context.Context, sessionID, _ string) ([]interpret.Candidate, error) {
	return p.svc.Plan(ctx, sessionID)
}

type oneShotPlanner struct {
	svc *Service
}

// OneShotPlanner plans from the latest request alone.
func OneShotPlanner(svc *Service) Planner {
	return oneShotPlanner{svc: svc}
}

func (oneShotPlanner) Name() string { return "one_shot" }

func (p oneShotPlanner) Plan(ctx context.Context, _, userText string) ([]interpret.Candidate, error) {
	return p.svc.PlanFromText(ctx, userText)
}
