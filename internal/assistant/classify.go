package assistant

import (
	"regexp"
	"strings"
)

var monthAbbrevs = []string{
	"jan", "feb", "mar", "apr", "may", "jun",
	"jul", "aug", "sep", "oct", "nov", "dec",
}

var (
	numericDateRe = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}([/-]\d{2,4})?\b`)
	ordinalDayRe  = regexp.MustCompile(`\b\d{1,2}(st|nd|rd|th)\b`)
	timeRes       = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,2}(:\d{2})?\s?(am|pm)\b`),
		regexp.MustCompile(`\b\d{1,2}\s?(am|pm)\b`),
		regexp.MustCompile(`\b\d{1,2}:\d{2}\b`),
	}
)

// Classification is the outcome of the direct-request heuristic.
type Classification struct {
	Direct  bool
	HasDate bool
	HasTime bool
}

// Classify looks for an explicit date marker (" on ", a month name or a
// numeric/ordinal day) together with a clock time. Relative phrases such as
// "tomorrow" or "next Tuesday" are not dates here; those requests go to the
// planner.
func Classify(text string) Classification {
	s := strings.ToLower(text)

	hasMonth := false
	for _, m := range monthAbbrevs {
		if strings.Contains(s, m) {
			hasMonth = true
			break
		}
	}
	hasDate := strings.Contains(s, " on ") || hasMonth ||
		numericDateRe.MatchString(s) || ordinalDayRe.MatchString(s)

	hasTime := false
	for _, re := range timeRes {
		if re.MatchString(s) {
			hasTime = true
			break
		}
	}

	return Classification{
		Direct:  hasDate && hasTime,
		HasDate: hasDate,
		HasTime: hasTime,
	}
}

// IsDirectEventRequest reports whether text names a single explicit event.
func IsDirectEventRequest(text string) bool {
	return Classify(text).Direct
}
