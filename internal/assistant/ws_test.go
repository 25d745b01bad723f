package assistant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aical-app/aical/internal/gemini"
	"github.com/aical-app/aical/internal/prompt"
)

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/assistant/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readUntilSummary(t *testing.T, conn *websocket.Conn) []Frame {
	t.Helper()
	var frames []Frame
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		frames = append(frames, f)
		if f.Type == FrameSummary || f.Type == FrameError {
			return frames
		}
	}
}

func TestAssistantWS(t *testing.T) {
	model := newFakeModel("Sure.").reply(kindPlan, prompt.PlanExample)
	srv := httptest.NewServer(newTestRouter(model, newFakeCalendar()))
	defer srv.Close()

	conn := dialWS(t, srv, "?sessionId=s1")

	require.NoError(t, conn.WriteJSON(map[string]string{"userText": "plan my week"}))
	frames := readUntilSummary(t, conn)
	require.Len(t, frames, 3)
	assert.Equal(t, Frame{Type: FrameDelta, Text: "Sure."}, frames[0])
	assert.Equal(t, FrameNotice, frames[1].Type)
	require.NotNil(t, frames[2].Summary)
	assert.Equal(t, "s1", frames[2].Summary.SessionID)

	require.NoError(t, conn.WriteJSON(map[string]string{"userText": ""}))
	frames = readUntilSummary(t, conn)
	require.Len(t, frames, 1)
	assert.Equal(t, Frame{Type: FrameError, Text: "Empty message"}, frames[0])
}

// blockingStream yields nothing until its context ends.
type blockingStream struct {
	ctx  context.Context
	done chan struct{}
}

func (s *blockingStream) Next() bool {
	<-s.ctx.Done()
	close(s.done)
	return false
}

func (s *blockingStream) Delta() string { return "" }
func (s *blockingStream) Err() error    { return s.ctx.Err() }
func (s *blockingStream) Close() error  { return nil }

type blockingModel struct {
	*fakeModel
	started   chan struct{}
	cancelled chan struct{}
}

func (m *blockingModel) CompleteStream(ctx context.Context, _ []gemini.Content) (gemini.Stream, error) {
	close(m.started)
	return &blockingStream{ctx: ctx, done: m.cancelled}, nil
}

func TestAssistantWS_DisconnectCancelsSubmission(t *testing.T) {
	model := &blockingModel{fakeModel: newFakeModel(), started: make(chan struct{}), cancelled: make(chan struct{})}
	srv := httptest.NewServer(newTestRouter(model, nil))
	defer srv.Close()

	conn := dialWS(t, srv, "?sessionId=s1")
	require.NoError(t, conn.WriteJSON(map[string]string{"userText": "hello"}))

	select {
	case <-model.started:
	case <-time.After(5 * time.Second):
		t.Fatal("submission did not start")
	}

	require.NoError(t, conn.Close())

	select {
	case <-model.cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("submission was not cancelled after disconnect")
	}
}

func TestAssistantWS_RequiresSession(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(newFakeModel("x"), nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/assistant/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	check := checkOrigin([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "http://api.example.com/ws", nil)
	assert.True(t, check(req), "no origin header")

	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	req.Header.Set("Origin", "http://api.example.com")
	assert.True(t, check(req), "same host")

	assert.True(t, checkOrigin([]string{"*"})(req))
}
