package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aical-app/aical/internal/gemini"
	"github.com/aical-app/aical/internal/memory"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeStream struct {
	deltas []string
	i      int
	err    error
	closed bool
}

func (s *fakeStream) Next() bool {
	if s.i >= len(s.deltas) {
		return false
	}
	s.i++
	return true
}

func (s *fakeStream) Delta() string { return s.deltas[s.i-1] }

func (s *fakeStream) Err() error {
	if s.i < len(s.deltas) {
		return nil
	}
	return s.err
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type promptKind int

const (
	kindSingle promptKind = iota
	kindPlan
	kindFallback
)

func kindOf(text string) promptKind {
	switch {
	case strings.Contains(text, "Extract exactly ONE"):
		return kindSingle
	case strings.Contains(text, "User request:"):
		return kindFallback
	default:
		return kindPlan
	}
}

type jsonReply struct {
	text string
	err  error
}

// fakeModel streams a fixed reply and answers JSON prompts by kind.
type fakeModel struct {
	mu        sync.Mutex
	deltas    []string
	readyErr  error
	openErr   error
	streamErr error
	replies   map[promptKind]jsonReply
	streamed  [][]gemini.Content
	prompts   []string
	streams   []*fakeStream
}

func newFakeModel(deltas ...string) *fakeModel {
	return &fakeModel{deltas: deltas, replies: map[promptKind]jsonReply{}}
}

func (m *fakeModel) reply(kind promptKind, text string) *fakeModel {
	m.replies[kind] = jsonReply{text: text}
	return m
}

func (m *fakeModel) fail(kind promptKind, err error) *fakeModel {
	m.replies[kind] = jsonReply{err: err}
	return m
}

func (m *fakeModel) Ready() error { return m.readyErr }

func (m *fakeModel) CompleteJSON(_ context.Context, contents []gemini.Content) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text := contents[0].Parts[0].Text
	m.prompts = append(m.prompts, text)
	r, ok := m.replies[kindOf(text)]
	if !ok {
		return "", errors.New("no reply configured")
	}
	return r.text, r.err
}

func (m *fakeModel) CompleteStream(_ context.Context, contents []gemini.Content) (gemini.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamed = append(m.streamed, contents)
	if m.openErr != nil {
		return nil, m.openErr
	}
	s := &fakeStream{deltas: m.deltas, err: m.streamErr}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *fakeModel) promptKinds() []promptKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]promptKind, 0, len(m.prompts))
	for _, p := range m.prompts {
		kinds = append(kinds, kindOf(p))
	}
	return kinds
}

func newTestService(model Model) (*Service, *memory.InMemoryStore) {
	store := memory.NewInMemoryStore(memory.WithClock(func() time.Time { return testNow }))
	return NewService(store, model, WithClock(func() time.Time { return testNow })), store
}

type recordingAdder struct {
	mu     sync.Mutex
	drafts []EventDraft
	failOn map[string]error
}

func (a *recordingAdder) AddEvent(_ context.Context, d EventDraft) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err, ok := a.failOn[d.Title]; ok {
		return err
	}
	a.drafts = append(a.drafts, d)
	return nil
}

type recordingSink struct {
	deltas   []string
	notices  []string
	outcomes []Outcome
}

func (s *recordingSink) Delta(text string) error {
	s.deltas = append(s.deltas, text)
	return nil
}

func (s *recordingSink) Notice(text string) error {
	s.notices = append(s.notices, text)
	return nil
}

func (s *recordingSink) Summary(out Outcome) error {
	s.outcomes = append(s.outcomes, out)
	return nil
}
