package assistant

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/aical-app/aical/internal/api"
	"github.com/aical-app/aical/internal/auth"
)

type chatRequest struct {
	SessionID string `json:"sessionId" validate:"max=256"`
	UserText  string `json:"userText" validate:"max=8000"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId" validate:"max=256"`
}

type parseRequest struct {
	Text string `json:"text" validate:"max=8000"`
}

type Handler struct {
	svc      *Service
	orch     *Orchestrator
	calendar EventCreator
	validate *validator.Validate
	upgrader websocket.Upgrader
}

func NewHandler(svc *Service, orch *Orchestrator, calendar EventCreator, allowedOrigins []string) *Handler {
	return &Handler{
		svc:      svc,
		orch:     orch,
		calendar: calendar,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

// Chat streams the model reply as chunked plain text. Errors found before
// the first chunk are reported as JSON; later ones end the stream.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decode(w, r, &req) {
		return
	}

	rc := http.NewResponseController(w)
	started := false
	start := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
	}

	_, err := h.svc.Chat(r.Context(), req.SessionID, req.UserText, func(delta string) error {
		start()
		if _, err := io.WriteString(w, delta); err != nil {
			return err
		}
		return flush(rc)
	})
	if err != nil {
		if !started {
			h.writeError(w, err)
			return
		}
		slog.Warn("chat stream interrupted", "session_id", req.SessionID, "error", err)
		return
	}
	start()
}

func (h *Handler) ClearChat(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.ClearSession(r.Context(), req.SessionID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Plan(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	plan, err := h.svc.Plan(r.Context(), req.SessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	api.JSONRaw(w, http.StatusOK, plan)
}

func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, ok, err := h.svc.Parse(r.Context(), req.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !ok {
		api.JSONRaw(w, http.StatusOK, struct{}{})
		return
	}
	api.JSONRaw(w, http.StatusOK, c)
}

// Assistant runs the whole workflow and streams newline-delimited JSON frames.
func (h *Handler) Assistant(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decode(w, r, &req) {
		return
	}

	sink := newNDJSONSink(w)
	if _, err := h.orch.Submit(r.Context(), req.SessionID, req.UserText, h.adderFor(r), sink); err != nil {
		h.writeError(w, err)
	}
}

func (h *Handler) adderFor(r *http.Request) EventAdder {
	adder := CalendarAdder{Calendar: h.calendar}
	if claims := auth.GetUserClaims(r.Context()); claims != nil {
		adder.UserID = claims.UserID()
	}
	return adder
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var e *Error
	if !errors.As(err, &e) {
		slog.Error("assistant request failed", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	switch e.Code {
	case ErrorInvalidInput:
		api.HandleError(w, api.NewBadRequestError(e.Reason))
	case ErrorConfiguration:
		slog.Error("assistant misconfigured", "error", err)
		api.HandleError(w, api.NewAppError(http.StatusInternalServerError, e.Reason))
	case ErrorRateLimited:
		api.HandleError(w, api.ErrRateLimited)
	case ErrorMalformedOutput:
		api.HandleError(w, api.NewAppError(http.StatusBadGateway, e.Reason))
	case ErrorUpstream:
		slog.Error("model request failed", "error", err)
		api.HandleError(w, api.NewAppError(http.StatusInternalServerError, SanitizeError(err)))
	default:
		slog.Error("assistant request failed", "error", err)
		api.HandleError(w, api.ErrInternalServer)
	}
}

func flush(rc *http.ResponseController) error {
	if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
