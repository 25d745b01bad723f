package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aical-app/aical/internal/auth"
)

func newTestRouter(svc *Service) http.Handler {
	h := NewHandler(svc)
	r := chi.NewRouter()
	r.Get("/events", h.List)
	r.Post("/events", h.Create)
	r.Delete("/events/{eventID}", h.Delete)
	r.Get("/events.ics", h.ExportICS)
	return r
}

func asUser(req *http.Request, userID string) *http.Request {
	claims := &auth.UserClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID}}
	return req.WithContext(auth.WithUserClaims(req.Context(), claims))
}

func TestHandler_RequiresClaims(t *testing.T) {
	router := newTestRouter(NewService(newMemRepo(), nil))
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/events", nil),
		httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{}`)),
		httptest.NewRequest(http.MethodDelete, "/events/0b0e5c4e-8f3e-4a4e-9d55-6c3f4b0b2f11", nil),
		httptest.NewRequest(http.MethodGet, "/events.ics", nil),
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, req.URL.Path)
	}
}

func TestHandler_CreateAndList(t *testing.T) {
	router := newTestRouter(NewService(newMemRepo(), nil))

	body, _ := json.Marshal(map[string]any{
		"title":      "Dentist",
		"start_time": start.Format(time.RFC3339),
		"end_time":   start.Add(time.Hour).Format(time.RFC3339),
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body)), "user-1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Dentist", created.Data.Title)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/events", nil), "user-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Data []Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Data, 1)
	assert.Equal(t, created.Data.ID, listed.Data[0].ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodDelete, "/events/"+created.Data.ID.String(), nil), "user-1"))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodDelete, "/events/"+created.Data.ID.String(), nil), "user-1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_CreateRejectsBadInput(t *testing.T) {
	router := newTestRouter(NewService(newMemRepo(), nil))
	cases := []string{
		`not json`,
		`{"title":"","start_time":"2025-03-11T19:00:00Z","end_time":"2025-03-11T20:00:00Z"}`,
		`{"title":"x","start_time":"2025-03-11T19:00:00Z","end_time":"2025-03-11T18:00:00Z"}`,
		`{"title":"x","start_time":"2025-03-11T19:00:00Z"}`,
	}
	for _, body := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body)), "u"))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestHandler_ListRejectsBadRange(t *testing.T) {
	router := newTestRouter(NewService(newMemRepo(), nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/events?from=yesterday", nil), "u"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_DeleteRejectsBadID(t *testing.T) {
	router := newTestRouter(NewService(newMemRepo(), nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodDelete, "/events/not-a-uuid", nil), "u"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ExportICS(t *testing.T) {
	svc := NewService(newMemRepo(), nil)
	_, err := svc.Create(context.Background(), "u", &CreateEventRequest{
		Title: "Gym", Description: "legs", StartTime: start, EndTime: start.Add(time.Hour),
	}, SourceAPI)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/events.ics", nil), "u"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")

	cal, err := ical.ParseCalendar(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 1)

	summary := events[0].GetProperty(ical.ComponentPropertySummary)
	require.NotNil(t, summary)
	assert.Equal(t, "Gym", summary.Value)

	got, err := events[0].GetStartAt()
	require.NoError(t, err)
	assert.True(t, got.Equal(start))
}
