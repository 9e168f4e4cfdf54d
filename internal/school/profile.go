package school

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lqhoang/classcal/internal/schedule"
)

// Profile carries one source's lookup tables. Sources ship their defaults
// compiled in; a YAML profile file can override or extend individual
// entries per source, so a new semester anchor never needs a rebuild.
type Profile struct {
	// Weekdays maps the portal's weekday tokens to zero-based day
	// offsets from the source's week start.
	Weekdays map[string]int `yaml:"weekdays"`

	// Slots maps 1-based lesson slot indices to wall-clock start times
	// in HH:MM:SS form.
	Slots map[int]string `yaml:"slots"`

	// Semesters maps term values to semester anchor dates in DD/MM/YYYY
	// form, the portals' own notation.
	Semesters map[string]string `yaml:"semesters"`

	// LessonMinutes is the slot length. Zero keeps the source default.
	LessonMinutes int `yaml:"lesson_minutes"`
}

// WeekdayOffset resolves a portal weekday token.
func (p Profile) WeekdayOffset(token string) (int, error) {
	offset, ok := p.Weekdays[token]
	if !ok {
		return 0, &schedule.LookupError{What: "weekday", Token: token}
	}
	return offset, nil
}

// SlotStart resolves a 1-based slot index to its wall-clock start, measured
// from midnight.
func (p Profile) SlotStart(slot int) (time.Duration, error) {
	raw, ok := p.Slots[slot]
	if !ok {
		return 0, &schedule.LookupError{What: "slot", Token: strconv.Itoa(slot)}
	}
	t, err := time.Parse("15:04:05", raw)
	if err != nil {
		return 0, fmt.Errorf("slot %d has a malformed start time %q: %w", slot, raw, err)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

// SemesterAnchor resolves a term value to the semester's first day at
// midnight in loc.
func (p Profile) SemesterAnchor(term string, loc *time.Location) (time.Time, error) {
	raw, ok := p.Semesters[term]
	if !ok {
		return time.Time{}, &schedule.LookupError{What: "semester anchor", Token: term}
	}
	t, err := time.ParseInLocation("02/01/2006", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("semester %s has a malformed anchor date %q: %w", term, raw, err)
	}
	return t, nil
}

// Merge returns p with o's entries applied on top, leaving both inputs
// untouched.
func (p Profile) Merge(o Profile) Profile {
	merged := Profile{
		Weekdays:      make(map[string]int, len(p.Weekdays)+len(o.Weekdays)),
		Slots:         make(map[int]string, len(p.Slots)+len(o.Slots)),
		Semesters:     make(map[string]string, len(p.Semesters)+len(o.Semesters)),
		LessonMinutes: p.LessonMinutes,
	}
	for k, v := range p.Weekdays {
		merged.Weekdays[k] = v
	}
	for k, v := range o.Weekdays {
		merged.Weekdays[k] = v
	}
	for k, v := range p.Slots {
		merged.Slots[k] = v
	}
	for k, v := range o.Slots {
		merged.Slots[k] = v
	}
	for k, v := range p.Semesters {
		merged.Semesters[k] = v
	}
	for k, v := range o.Semesters {
		merged.Semesters[k] = v
	}
	if o.LessonMinutes != 0 {
		merged.LessonMinutes = o.LessonMinutes
	}
	return merged
}

// LoadProfiles reads per-source table overrides from a YAML file keyed by
// source name.
func LoadProfiles(path string) (map[string]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	profiles := make(map[string]Profile)
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse profile file: %w", err)
	}

	return profiles, nil
}
