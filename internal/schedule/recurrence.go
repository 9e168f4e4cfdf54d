package schedule

import (
	"time"
	"unicode/utf8"
)

// DefaultLessonMinutes is the length of one lesson slot. Every supported
// portal uses 50-minute lessons; a source profile can override it.
const DefaultLessonMinutes = 50

// WindowInput carries the calculator inputs a source adapter assembles from
// its raw record shape.
type WindowInput struct {
	// SemesterStart is the first day of the semester at midnight in the
	// configured zone.
	SemesterStart time.Time

	// WeekdayOffset is the number of days from the semester's week start
	// to the class's weekday.
	WeekdayOffset int

	// SlotStart is the wall-clock start of the first lesson slot,
	// measured from midnight.
	SlotStart time.Duration

	// LessonCount is the number of consecutive lesson slots.
	LessonCount int

	// WeekPattern encodes which semester weeks the class meets. Leading
	// non-digit characters are weeks the class skips before it first
	// meets; the total character count is the span of the class in weeks.
	WeekPattern string

	// LessonMinutes overrides DefaultLessonMinutes when non-zero.
	LessonMinutes int
}

// Window computes the first-occurrence start and the final-occurrence end
// for one class.
//
// The anchor is SemesterStart at SlotStart. The end of the window spans the
// full pattern length in weeks from that anchor, regardless of skipped
// weeks, plus the weekday offset and the lesson time itself. The start of
// the window is the anchor pushed forward one week per leading non-digit
// pattern character, plus the weekday offset. A pattern with no digits at
// all (an exam day, say) collapses the window to a single day.
func Window(in WindowInput) (from, to time.Time) {
	minutes := in.LessonMinutes
	if minutes == 0 {
		minutes = DefaultLessonMinutes
	}
	lessons := time.Duration(in.LessonCount*minutes) * time.Minute

	anchor := in.SemesterStart.Add(in.SlotStart)
	span := utf8.RuneCountInString(in.WeekPattern)
	to = anchor.AddDate(0, 0, 7*span+in.WeekdayOffset).Add(lessons)

	skipped := 0
	for _, c := range in.WeekPattern {
		if c >= '0' && c <= '9' {
			break
		}
		skipped++
	}
	from = anchor.AddDate(0, 0, 7*skipped+in.WeekdayOffset)

	return from, to
}
