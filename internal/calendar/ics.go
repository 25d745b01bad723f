package calendar

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
)

const productID = "-//aical//calendar//EN"

// ExportICS renders events as an iCalendar feed.
func ExportICS(name string, events []*Event, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, ev := range events {
		vev := cal.AddEvent(fmt.Sprintf("%s@aical", ev.ID))
		vev.SetDtStampTime(stamp.UTC())
		vev.SetCreatedTime(ev.CreatedAt.UTC())
		vev.SetStartAt(ev.StartTime.UTC())
		vev.SetEndAt(ev.EndTime.UTC())
		vev.SetSummary(ev.Title)
		if ev.Description != "" {
			vev.SetDescription(ev.Description)
		}
	}
	return cal.Serialize()
}
