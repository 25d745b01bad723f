package assistant

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	FrameDelta   = "delta"
	FrameNotice  = "notice"
	FrameSummary = "summary"
	FrameError   = "error"
)

// Frame is one message of the assistant stream.
type Frame struct {
	Type    string   `json:"type"`
	Text    string   `json:"text,omitempty"`
	Summary *Outcome `json:"summary,omitempty"`
}

type frameWriter func(Frame) error

func (f frameWriter) Delta(text string) error {
	return f(Frame{Type: FrameDelta, Text: text})
}

func (f frameWriter) Notice(text string) error {
	return f(Frame{Type: FrameNotice, Text: text})
}

func (f frameWriter) Summary(out Outcome) error {
	return f(Frame{Type: FrameSummary, Summary: &out})
}

// newNDJSONSink writes frames as newline-delimited JSON. Headers are sent
// with the first frame so earlier failures can still answer with a status.
func newNDJSONSink(w http.ResponseWriter) Sink {
	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	started := false
	return frameWriter(func(f Frame) error {
		if !started {
			started = true
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
		}
		if err := enc.Encode(f); err != nil {
			return err
		}
		return flush(rc)
	})
}

const wsWriteTimeout = 10 * time.Second

func newWSSink(conn *websocket.Conn) Sink {
	return frameWriter(func(f Frame) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(f)
	})
}
