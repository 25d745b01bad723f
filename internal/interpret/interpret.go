// Package interpret turns raw model output into validated event candidates.
package interpret

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxTitleLength bounds candidate titles, counted in runes.
const MaxTitleLength = 120

// DefaultDuration is used when a candidate carries no end time.
const DefaultDuration = 60 * time.Minute

// ErrMalformed means the output held no decodable JSON value.
var ErrMalformed = errors.New("interpret: model output is not valid JSON")

// Candidate is a provisional event extracted from model output.
type Candidate struct {
	Title   string `json:"title"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	EndTime string `json:"endTime,omitempty"`

	Start time.Time `json:"-"`
	End   time.Time `json:"-"` // zero when EndTime is empty
}

// Interval returns the candidate's start and end, defaulting the end to
// start plus d (or DefaultDuration when d is not positive).
func (c Candidate) Interval(d time.Duration) (time.Time, time.Time) {
	if !c.End.IsZero() {
		return c.Start, c.End
	}
	if d <= 0 {
		d = DefaultDuration
	}
	return c.Start, c.Start.Add(d)
}

// ExtractSingleEvent returns the single event described by raw, or false
// when raw is empty, not an object, missing fields, or not in the future.
func ExtractSingleEvent(raw string, now time.Time, loc *time.Location) (Candidate, bool) {
	blob := CleanObject(raw)
	if blob == "" {
		return Candidate{}, false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(blob), &obj); err != nil || len(obj) == 0 {
		return Candidate{}, false
	}
	return validate(obj, now, loc)
}

// ParsePlan decodes a plan array and keeps the valid future candidates.
// It fails with ErrMalformed only when no JSON value can be decoded; a
// value that is not an array yields an empty plan.
func ParsePlan(raw string, now time.Time, loc *time.Location) ([]Candidate, error) {
	blob := CleanArray(raw)
	if blob == "" {
		return nil, ErrMalformed
	}

	var v any
	if err := json.Unmarshal([]byte(blob), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	items, ok := v.([]any)
	if !ok {
		return []Candidate{}, nil
	}

	out := make([]Candidate, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if c, ok := validate(obj, now, loc); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// ExtractPlan is ParsePlan with decode failures mapped to an empty plan.
func ExtractPlan(raw string, now time.Time, loc *time.Location) []Candidate {
	plan, err := ParsePlan(raw, now, loc)
	if err != nil {
		return []Candidate{}
	}
	return plan
}

// Clean strips markdown fences and surrounding prose, returning the
// outermost JSON object or array, or "" when there is none.
func Clean(raw string) string {
	s := stripFences(raw)
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	return outermost(s, s[start])
}

// CleanObject is Clean for output that should hold an object. Output that
// is entirely one JSON value is returned as is; otherwise an array is
// returned only when there is no object at all.
func CleanObject(raw string) string {
	return cleanPreferring(raw, '{')
}

// CleanArray is Clean for output that should hold an array. An object is
// returned only when there is no array at all.
func CleanArray(raw string) string {
	return cleanPreferring(raw, '[')
}

func cleanPreferring(raw string, open byte) string {
	s := stripFences(raw)
	if s != "" && strings.IndexByte("{[", s[0]) >= 0 && json.Valid([]byte(s)) {
		return s
	}
	if blob := outermost(s, open); blob != "" {
		return blob
	}
	other := byte('[')
	if open == '[' {
		other = '{'
	}
	return outermost(s, other)
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
			s = s[nl+1:] // language tag
		}
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// outermost returns the first span from an open bracket to the last
// matching closer that decodes as JSON. When none decodes it returns the
// widest span, so the caller still sees a decode error.
func outermost(s string, open byte) string {
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)

	widest := ""
	for i := strings.IndexByte(s, open); i >= 0 && i < end; {
		blob := s[i : end+1]
		if json.Valid([]byte(blob)) {
			return blob
		}
		if widest == "" {
			widest = blob
		}
		next := strings.IndexByte(s[i+1:], open)
		if next < 0 {
			break
		}
		i += next + 1
	}
	return widest
}

func validate(obj map[string]any, now time.Time, loc *time.Location) (Candidate, bool) {
	if loc == nil {
		loc = time.UTC
	}

	title, ok1 := stringField(obj, "title")
	date, ok2 := stringField(obj, "date")
	clock, ok3 := stringField(obj, "time")
	if !ok1 || !ok2 || !ok3 {
		return Candidate{}, false
	}

	start, ok := parseInstant(date, clock, loc)
	if !ok || !start.After(now) {
		return Candidate{}, false
	}

	c := Candidate{
		Title: truncate(title, MaxTitleLength),
		Date:  date,
		Time:  clock,
		Start: start,
	}

	if _, present := obj["endTime"]; present {
		endClock, ok := stringField(obj, "endTime")
		if ok {
			end, ok := parseInstant(date, endClock, loc)
			if !ok || !end.After(start) {
				return Candidate{}, false
			}
			c.EndTime = endClock
			c.End = end
		}
	}
	return c, true
}

func stringField(obj map[string]any, key string) (string, bool) {
	s, ok := obj[key].(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func parseInstant(date, clock string, loc *time.Location) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, date+" "+clock, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
