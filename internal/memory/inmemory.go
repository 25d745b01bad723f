package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type session struct {
	turns    []Turn
	lastSeen time.Time
}

// InMemoryStore keeps session histories in process memory.
// Each operation is atomic; concurrent submissions on one session may
// interleave their turns in either order.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
	maxLen   int
	ttl      time.Duration
}

type InMemoryOption func(*InMemoryStore)

func WithClock(now func() time.Time) InMemoryOption {
	return func(s *InMemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func WithMaxLen(n int) InMemoryOption {
	return func(s *InMemoryStore) {
		if n > 0 {
			s.maxLen = n
		}
	}
}

// WithTTL sets the idle time after which Sweep drops a session. Zero disables expiry.
func WithTTL(ttl time.Duration) InMemoryOption {
	return func(s *InMemoryStore) {
		s.ttl = ttl
	}
}

func NewInMemoryStore(opts ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		sessions: make(map[string]*session),
		now:      time.Now,
		maxLen:   DefaultMaxTurns,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Append(_ context.Context, sessionID string, turn Turn, maxLen int) ([]Turn, error) {
	if maxLen <= 0 {
		maxLen = s.maxLen
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if turn.At.IsZero() {
		turn.At = now
	}

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{}
		s.sessions[sessionID] = sess
	}
	sess.turns = append(sess.turns, turn)
	if over := len(sess.turns) - maxLen; over > 0 {
		sess.turns = append([]Turn(nil), sess.turns[over:]...)
	}
	sess.lastSeen = now

	return cloneTurns(sess.turns), nil
}

func (s *InMemoryStore) LastN(_ context.Context, sessionID string, n int) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || n <= 0 {
		return []Turn{}, nil
	}
	sess.lastSeen = s.now()

	turns := sess.turns
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return cloneTurns(turns), nil
}

func (s *InMemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// Sweep drops sessions idle for longer than the configured TTL and
// reports how many were removed.
func (s *InMemoryStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// StartSweeper runs Sweep on the given cron schedule until the returned
// stop function is called.
func (s *InMemoryStore) StartSweeper(schedule string) (func(), error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if n := s.Sweep(); n > 0 {
			slog.Debug("swept idle chat sessions", "removed", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling session sweeper %q: %w", schedule, err)
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}

func cloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
