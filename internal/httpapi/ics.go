package httpapi

import (
	"fmt"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"

	"deployrota/internal/schedule"
)

const icsProductID = "-//deployrota//deploy schedule//EN"

// eventUID depends only on the date, so calendar clients update the existing
// event when the responsible changes.
func eventUID(d schedule.Date) string {
	return "deploy-" + d.Format("20060102") + "@deployrota"
}

// writeICS renders entries as all-day VEVENTs.
func writeICS(w io.Writer, calName string, entries []schedule.Entry, display func(schedule.Date) string) error {
	cal := ics.NewCalendar()
	cal.SetProductId(icsProductID)
	cal.SetMethod(ics.MethodPublish)
	cal.SetCalscale("GREGORIAN")
	if calName != "" {
		cal.SetXWRCalName(calName)
	}

	stamp := time.Now().UTC()
	for _, e := range entries {
		ev := cal.AddEvent(eventUID(e.Date))
		ev.SetDtStampTime(stamp)
		ev.SetAllDayStartAt(e.Date.In(time.UTC))
		ev.SetAllDayEndAt(e.Date.AddDays(1).In(time.UTC))
		ev.SetSummary("Deploy: " + e.Responsible)
		ev.SetDescription(fmt.Sprintf("%s is responsible for the deploy on %s", e.Responsible, display(e.Date)))
		ev.SetProperty(ics.ComponentPropertyTransp, "TRANSPARENT")
	}
	return cal.SerializeTo(w)
}
