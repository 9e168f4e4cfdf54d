package schedule

import "fmt"

// LookupError reports a source token that has no entry in one of the
// source's lookup tables, or a required descriptor field that is absent.
// It aborts the whole batch; partial normalization is never attempted.
type LookupError struct {
	What  string // table or field name, e.g. "weekday" or "room"
	Token string // offending token, empty when a required field is missing
}

func (e *LookupError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("missing required %s", e.What)
	}
	return fmt.Sprintf("no %s entry for %q", e.What, e.Token)
}
