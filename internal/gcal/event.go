package gcal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/teambition/rrule-go"
	"google.golang.org/api/calendar/v3"

	"github.com/lqhoang/classcal/internal/schedule"
)

const (
	// The API renders event times from a local wall clock string plus an
	// explicit time zone name.
	dateTimeLayout = "2006-01-02T15:04:05"

	// Google Calendar offers eleven event colors.
	paletteSize = 11

	reminderLeadMinutes = 30
)

// BuildEvent renders one formatted occurrence as a Google Calendar event.
// Batch colors beyond the palette wrap around, and weekly recurrence is only
// attached when the occurrence actually repeats.
func BuildEvent(ev schedule.Event, timeZone string) *calendar.Event {
	color := ev.Color
	if color < 1 {
		color = 1
	}

	out := &calendar.Event{
		Summary:     strings.TrimSpace(ev.Code + " " + ev.Name),
		Location:    ev.Room,
		Description: fmt.Sprintf("Class: %s\nLecturer: %s", ev.ClassSection, ev.Lecturer),
		ColorId:     strconv.Itoa((color-1)%paletteSize + 1),
		Start: &calendar.EventDateTime{
			DateTime: ev.StartPeriodDate.Format(dateTimeLayout),
			TimeZone: timeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: ev.EndPeriodDate.Format(dateTimeLayout),
			TimeZone: timeZone,
		},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: reminderLeadMinutes},
			},
			// UseDefault is a zero value, force it onto the wire.
			ForceSendFields: []string{"UseDefault"},
		},
	}

	if ev.Repeat > 0 {
		rule := rrule.ROption{Freq: rrule.WEEKLY, Count: ev.Repeat}
		out.Recurrence = []string{"RRULE:" + rule.RRuleString()}
	}

	return out
}
