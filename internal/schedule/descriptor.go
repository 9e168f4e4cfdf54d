// Package schedule holds the source-agnostic class descriptor, the
// occurrence-window calculator, and the batch formatter that turns
// descriptors into calendar-ready events.
package schedule

import "time"

// Descriptor is one class as a source adapter hands it over: identifiers as
// free text, the source-native weekday/slot tokens already resolved against
// the source's lookup tables, and the occurrence window already computed.
//
// Name and Room are mandatory. Code, ClassSection and Lecturer may be empty.
type Descriptor struct {
	Code         string
	Name         string
	Credits      string
	ClassSection string
	Room         string
	Lecturer     string

	Weekday     string // source-native weekday token
	StartPeriod int    // 1-based lesson slot of the first lesson
	EndPeriod   int    // 1-based lesson slot one past the last lesson
	WeekPattern string

	FromDate time.Time // start of the first occurrence
	ToDate   time.Time // end of the final occurrence
}

// Event is a formatted, calendar-ready class. It is produced once per
// descriptor by Format and consumed exactly once by the submission layer.
type Event struct {
	Descriptor

	// Repeat counts the weekly occurrences covered by the recurrence rule.
	// Zero means a single-day event and no recurrence rule at all.
	Repeat int

	StartPeriodDate time.Time // same instant as FromDate
	EndPeriodDate   time.Time // FromDate's calendar day at ToDate's time of day

	// Color is a 1-based integer stable per distinct Name within one
	// Format call. It is not persisted across runs.
	Color int
}
