// Package prompt renders chat history, user text and the current time into
// instructions for the language model. Everything here is pure.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/aical-app/aical/internal/gemini"
	"github.com/aical-app/aical/internal/memory"
)

// ConversationLimit is the number of turns sent with a conversational reply.
const ConversationLimit = 10

// PlanExample is the array shape the planning prompt asks for. The response
// interpreter must accept it unchanged.
const PlanExample = `[
  {"title": "Gym session", "date": "2025-03-11", "time": "19:00"},
  {"title": "Call with Sam", "date": "2025-03-12", "time": "20:30"}
]`

// formatNow keeps now's offset, so callers pass it in the zone the model's
// dates are read in.
func formatNow(now time.Time) string {
	return now.Format(time.RFC3339)
}

// SingleEvent asks for exactly one event with an explicit date, or {}.
func SingleEvent(userText string, now time.Time) string {
	lines := []string{
		"Extract exactly ONE concrete event from the user's request.",
		"Return strictly JSON (no markdown). Schema:",
		"{",
		`  "title": string,`,
		`  "date": "YYYY-MM-DD",    // absolute calendar date required`,
		`  "time": "HH:mm",         // start time, 24h`,
		`  "endTime": "HH:mm"       // optional, only if the user gave an end time or duration`,
		"}",
		"Rules:",
		`- Use the explicit date and time mentioned by the user (e.g. "December 2nd 1-2pm").`,
		"- If the request lacks a concrete date, return {}.",
		"- Do not invent multiple events.",
		"Current time: " + formatNow(now),
		"User: " + userText,
	}
	return strings.Join(lines, "\n")
}

// Conversation maps history plus the new user message to model contents,
// keeping only the last limit entries.
func Conversation(history []memory.Turn, userText string, limit int) []gemini.Content {
	if limit <= 0 {
		limit = ConversationLimit
	}

	contents := make([]gemini.Content, 0, len(history)+1)
	for _, t := range history {
		if t.Role == memory.RoleModel {
			contents = append(contents, gemini.ModelContent(t.Text))
			continue
		}
		contents = append(contents, gemini.UserContent(t.Text))
	}
	contents = append(contents, gemini.UserContent(userText))

	if len(contents) > limit {
		contents = contents[len(contents)-limit:]
	}
	return contents
}

// Transcript renders history as "ROLE: text" lines.
func Transcript(history []memory.Turn) string {
	lines := make([]string, 0, len(history))
	for _, t := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(string(t.Role)), t.Text))
	}
	return strings.Join(lines, "\n")
}

// Plan asks for a seven day plan derived from the conversation so far.
func Plan(history []memory.Turn, now time.Time) string {
	lines := []string{
		"You are an expert life planner assistant.",
		"Current datetime (ISO): " + formatNow(now),
		"",
		"Conversation summary below (user goals, constraints, preferences):",
		Transcript(history),
		"",
		"Task:",
		"- Produce a 7-day plan starting from the current date, with concrete events that fit the user's routine and constraints (work hours, commute, sleep, workout, social time).",
		"- Prefer evening times if the user is busy during the day and arrives home at 18:00.",
		"- Ensure events are all in the future.",
		"- Keep reasonable durations (default 60 minutes unless stated otherwise).",
		"- Include workouts, social calls and any priorities mentioned by the user.",
		"",
		"Output strictly JSON (no markdown), an array where each element is:",
		`{"title": string, "date": "YYYY-MM-DD", "time": "HH:mm"}`,
		"Example:",
		PlanExample,
		"Return [] if there is not enough information to schedule anything.",
	}
	return strings.Join(lines, "\n")
}

// FallbackPlan is a one-shot scheduling prompt built from the latest request only.
func FallbackPlan(userText string, now time.Time) string {
	lines := []string{
		fmt.Sprintf("You are a scheduling assistant. Current ISO time: %s.", formatNow(now)),
		`Return strictly JSON array (no markdown). Each item: {"title": string, "date": "YYYY-MM-DD", "time": "HH:mm"}.`,
		fmt.Sprintf("User request: %q", userText),
	}
	return strings.Join(lines, "\n")
}
