package schedule

import (
	"fmt"
	"log"
	"time"
)

// Formatter turns a batch of descriptors into calendar-ready events.
// The zero value is ready to use.
type Formatter struct {
	// Warnf receives notices about optional fields that were left blank.
	// Defaults to log.Printf.
	Warnf func(format string, v ...any)
}

// Format validates a batch of descriptors and produces the events to submit,
// in input order. Name and Room must be present on every descriptor or the
// whole batch fails. Missing Code, ClassSection or Lecturer degrade to an
// empty string with a warning.
//
// Colors are assigned per distinct subject name in first-seen order starting
// at 1, scoped to this one call.
func (f Formatter) Format(descriptors []Descriptor) ([]Event, error) {
	colors := make(map[string]int, len(descriptors))
	events := make([]Event, 0, len(descriptors))

	for i, d := range descriptors {
		if d.Name == "" {
			return nil, fmt.Errorf("record %d: %w", i, &LookupError{What: "name"})
		}
		if d.Room == "" {
			return nil, fmt.Errorf("record %d (%s): %w", i, d.Name, &LookupError{What: "room"})
		}

		for _, opt := range []struct {
			field string
			value *string
		}{
			{"code", &d.Code},
			{"class", &d.ClassSection},
			{"lecturer", &d.Lecturer},
		} {
			if *opt.value == "" {
				f.warnf("Warning: missing %s of %q, leaving it blank", opt.field, d.Name)
			}
		}

		if d.ToDate.Before(d.FromDate) {
			return nil, fmt.Errorf("record %d (%s): occurrence window ends %s before it starts %s",
				i, d.Name, d.ToDate.Format(time.RFC3339), d.FromDate.Format(time.RFC3339))
		}
		repeat := int(d.ToDate.Sub(d.FromDate) / (7 * 24 * time.Hour))

		color, ok := colors[d.Name]
		if !ok {
			color = len(colors) + 1
			colors[d.Name] = color
		}

		events = append(events, Event{
			Descriptor:      d,
			Repeat:          repeat,
			StartPeriodDate: d.FromDate,
			EndPeriodDate:   endOfFirstDay(d.FromDate, d.ToDate),
			Color:           color,
		})
	}

	return events, nil
}

// Format is shorthand for Formatter{}.Format.
func Format(descriptors []Descriptor) ([]Event, error) {
	return Formatter{}.Format(descriptors)
}

func (f Formatter) warnf(format string, v ...any) {
	if f.Warnf != nil {
		f.Warnf(format, v...)
		return
	}
	log.Printf(format, v...)
}

// endOfFirstDay is from's calendar day carrying to's time of day. The
// recurrence rule repeats the first occurrence weekly, so the per-day end
// time has to come from the window end while the date stays on day one.
func endOfFirstDay(from, to time.Time) time.Time {
	return time.Date(from.Year(), from.Month(), from.Day(),
		to.Hour(), to.Minute(), to.Second(), 0, from.Location())
}
