package assistant

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aical-app/aical/internal/api"
)

const (
	wsReadLimit   = 64 << 10
	wsIdleTimeout = 10 * time.Minute
)

type wsMessage struct {
	UserText string `json:"userText"`
}

// AssistantWS runs the workflow for each {userText} frame received on the
// socket, one submission at a time, and answers with the same frames as
// Assistant.
func (h *Handler) AssistantWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("sessionId"))
	if sessionID == "" {
		api.HandleError(w, api.NewBadRequestError(reasonInvalidSession))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	adder := h.adderFor(r)
	sink := newWSSink(conn)

	// The server stops watching hijacked connections, so a failed read is
	// what cancels an in-flight submission.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(wsReadLimit)
	inbox := make(chan wsMessage, 1)
	go func() {
		defer close(inbox)
		defer cancel()
		for {
			_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Debug("websocket closed", "session_id", sessionID, "error", err)
				}
				return
			}
			select {
			case inbox <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for msg := range inbox {
		if _, err := h.orch.Submit(ctx, sessionID, msg.UserText, adder, sink); err != nil {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(Frame{Type: FrameError, Text: SanitizeError(err)}); err != nil {
				return
			}
		}
	}
}

// checkOrigin allows non-browser clients and the configured origins.
func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}
