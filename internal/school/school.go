// Package school defines the contract every school portal adapter
// implements, the registry the CLI dispatches on, and the lookup-table
// profiles the adapters resolve their source tokens through.
package school

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lqhoang/classcal/internal/schedule"
)

// RawRecord is one schedule row the way the portal rendered it: the cell
// texts in document order. Each source owns the interpretation of its own
// layout; nothing outside the source's adapter indexes into it.
type RawRecord []string

// Term identifies one semester of one source. Semester carries the portal's
// own value (for example "20231"); Year carries the school-year qualifier
// for portals that split the two and stays empty elsewhere.
type Term struct {
	Semester string
	Year     string
}

func (t Term) String() string {
	if t.Year == "" {
		return t.Semester
	}
	return t.Year + "/" + t.Semester
}

// TermSet lists the term values a portal offers right now.
type TermSet struct {
	Semesters []string
	Years     []string
}

// Default returns the portal's current term, the first offered entry.
func (ts *TermSet) Default() Term {
	var t Term
	if len(ts.Semesters) > 0 {
		t.Semester = ts.Semesters[0]
	}
	if len(ts.Years) > 0 {
		t.Year = ts.Years[0]
	}
	return t
}

// Validate checks a requested term against the offered values.
func (ts *TermSet) Validate(t Term) error {
	if !contains(ts.Semesters, t.Semester) {
		return &InvalidTermError{Field: "semester", Value: t.Semester, Valid: ts.Semesters}
	}
	if len(ts.Years) > 0 && !contains(ts.Years, t.Year) {
		return &InvalidTermError{Field: "year", Value: t.Year, Valid: ts.Years}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// Session is a live authenticated portal session. It is produced by
// Source.Login and must be released with Logout on every exit path.
type Session interface {
	// Semesters scrapes the term values the portal currently offers.
	Semesters(ctx context.Context) (*TermSet, error)

	// Fetch returns the raw schedule rows for one term. An empty result
	// means the portal has no timetable yet, not an error.
	Fetch(ctx context.Context, term Term) ([]RawRecord, error)

	// Logout releases the session. Logging out twice is an error.
	Logout(ctx context.Context) error
}

// Source is one school portal: its authentication flow plus the adapter
// that knows its raw record layout.
type Source interface {
	Name() string

	// ApplyProfile merges lookup-table overrides onto the source's
	// compiled-in defaults.
	ApplyProfile(p Profile)

	// Login authenticates against the portal and returns a live session.
	Login(ctx context.Context, username, password string) (Session, error)

	// Standardize converts raw rows into descriptors, resolving weekday
	// and slot tokens through the source's tables and computing each
	// occurrence window. A token with no table entry fails the batch.
	Standardize(term Term, rows []RawRecord) ([]schedule.Descriptor, error)
}

// Registry maps source names to sources.
type Registry struct {
	sources map[string]Source
}

// NewRegistry builds a registry over the given sources.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		r.sources[strings.ToLower(s.Name())] = s
	}
	return r
}

// Lookup finds a source by name, case-insensitively.
func (r *Registry) Lookup(name string) (Source, error) {
	s, ok := r.sources[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown source %q, available sources: %s", name, strings.Join(r.Names(), ", "))
	}
	return s, nil
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyProfiles hands each override to its source. An unknown source name
// is an error so a profile typo cannot silently apply nothing.
func (r *Registry) ApplyProfiles(profiles map[string]Profile) error {
	for name, p := range profiles {
		s, err := r.Lookup(name)
		if err != nil {
			return err
		}
		s.ApplyProfile(p)
	}
	return nil
}
