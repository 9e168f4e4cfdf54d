// Package ics renders formatted class schedules as an iCalendar stream, for
// calendar apps that are not Google's.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/lqhoang/classcal/internal/schedule"
)

// Write renders the events as one VCALENDAR.
func Write(w io.Writer, name string, events []schedule.Event) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//classcal//EN")
	if name != "" {
		cal.Props.SetText("X-WR-CALNAME", name)
	}

	for _, ev := range events {
		cal.Children = append(cal.Children, buildComponent(ev))
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}

	return nil
}

func buildComponent(ev schedule.Event) *ical.Component {
	vevent := ical.NewComponent(ical.CompEvent)

	vevent.Props.SetText(ical.PropUID, uuid.NewString())
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now())
	vevent.Props.SetText(ical.PropSummary, strings.TrimSpace(ev.Code+" "+ev.Name))
	vevent.Props.SetText(ical.PropDescription, fmt.Sprintf("Class: %s\nLecturer: %s", ev.ClassSection, ev.Lecturer))
	if ev.Room != "" {
		vevent.Props.SetText(ical.PropLocation, ev.Room)
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStart, ev.StartPeriodDate)
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, ev.EndPeriodDate)

	if ev.Repeat > 0 {
		rule := rrule.ROption{Freq: rrule.WEEKLY, Count: ev.Repeat}
		// The rule goes in raw, SetText would escape the semicolons.
		prop := ical.NewProp(ical.PropRecurrenceRule)
		prop.Value = rule.RRuleString()
		vevent.Props.Set(prop)
	}

	return vevent
}
