// Package pipeline drives a full run: log in to the school portal, fetch
// and format the timetable, then hand the events to Google Calendar or an
// iCalendar file.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"

	"google.golang.org/api/calendar/v3"

	"github.com/lqhoang/classcal/internal/config"
	"github.com/lqhoang/classcal/internal/gcal"
	"github.com/lqhoang/classcal/internal/ics"
	"github.com/lqhoang/classcal/internal/schedule"
	"github.com/lqhoang/classcal/internal/school"
)

// Calendar is the slice of the Google Calendar client the pipeline needs.
type Calendar interface {
	CalendarID(name string) (string, bool, error)
	CreateCalendar(name, timeZone string) (string, error)
	DeleteCalendar(calendarID string) error
	InsertEvent(calendarID string, event *calendar.Event) error
}

// Pipeline connects one school portal to one destination calendar.
type Pipeline struct {
	source   school.Source
	calendar Calendar
	config   *config.Config
}

// New creates a Pipeline. The calendar may be nil when only Export runs.
func New(source school.Source, cal Calendar, cfg *config.Config) *Pipeline {
	return &Pipeline{
		source:   source,
		calendar: cal,
		config:   cfg,
	}
}

// Import builds a brand new calendar from the timetable. It refuses to touch
// a calendar that already exists.
func (p *Pipeline) Import(ctx context.Context, semester, year string) error {
	if _, found, err := p.calendar.CalendarID(p.config.CalendarName); err != nil {
		return err
	} else if found {
		return fmt.Errorf("calendar %q already exists, use the update mode to rebuild it", p.config.CalendarName)
	}

	events, err := p.fetchEvents(ctx, semester, year)
	if err != nil {
		return err
	}

	return p.push(events)
}

// Update rebuilds an existing calendar. The timetable is fetched and
// formatted before the old calendar is dropped.
func (p *Pipeline) Update(ctx context.Context, semester, year string) error {
	calendarID, found, err := p.calendar.CalendarID(p.config.CalendarName)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("cannot find calendar %q, run the import mode first", p.config.CalendarName)
	}

	events, err := p.fetchEvents(ctx, semester, year)
	if err != nil {
		return err
	}

	if err := p.calendar.DeleteCalendar(calendarID); err != nil {
		return err
	}
	log.Printf("Dropped the old %q calendar", p.config.CalendarName)

	return p.push(events)
}

// Export writes the timetable to w as iCalendar data instead of pushing it
// to Google.
func (p *Pipeline) Export(ctx context.Context, semester, year string, w io.Writer) error {
	events, err := p.fetchEvents(ctx, semester, year)
	if err != nil {
		return err
	}

	return ics.Write(w, p.config.CalendarName, events)
}

// fetchEvents runs the portal half of a run: log in, pick the term, fetch
// the raw timetable and format it. The session is always released, though a
// failed logout only warns.
func (p *Pipeline) fetchEvents(ctx context.Context, semester, year string) ([]schedule.Event, error) {
	sess, err := p.source.Login(ctx, p.config.Username, p.config.Password)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Logout(ctx); err != nil {
			log.Printf("Warning: failed to log out of %s: %v", p.source.Name(), err)
		}
	}()

	terms, err := sess.Semesters(ctx)
	if err != nil {
		return nil, err
	}
	term, err := resolveTerm(terms, semester, year)
	if err != nil {
		return nil, err
	}
	log.Printf("Fetching the %s timetable for term %s", p.source.Name(), term)

	rows, err := sess.Fetch(ctx, term)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("the portal returned no timetable rows for term %s", term)
	}

	descriptors, err := p.source.Standardize(term, rows)
	if err != nil {
		return nil, err
	}

	return schedule.Format(descriptors)
}

// push creates the destination calendar and inserts every event on it.
func (p *Pipeline) push(events []schedule.Event) error {
	calendarID, err := p.calendar.CreateCalendar(p.config.CalendarName, p.config.TimeZone)
	if err != nil {
		return err
	}
	log.Printf("Created calendar %q", p.config.CalendarName)

	for _, ev := range events {
		built := gcal.BuildEvent(ev, p.config.TimeZone)
		if err := p.calendar.InsertEvent(calendarID, built); err != nil {
			return fmt.Errorf("failed to insert %q: %w", built.Summary, err)
		}
		log.Printf("Inserted %s", built.Summary)
	}

	log.Printf("Done, %d events on %q", len(events), p.config.CalendarName)
	return nil
}

// resolveTerm fills an incomplete term request from the portal defaults and
// validates the result against what the portal offers.
func resolveTerm(terms *school.TermSet, semester, year string) (school.Term, error) {
	term := school.Term{Semester: semester, Year: year}

	if term.Semester == "" || (term.Year == "" && len(terms.Years) > 0) {
		def := terms.Default()
		if term.Semester == "" {
			term.Semester = def.Semester
		}
		if term.Year == "" {
			term.Year = def.Year
		}
		log.Printf("Term not fully specified, using %s", term)
	}

	if err := terms.Validate(term); err != nil {
		return school.Term{}, err
	}
	return term, nil
}
