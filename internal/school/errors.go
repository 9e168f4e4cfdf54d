package school

import (
	"fmt"
	"strings"
)

// AuthError reports a login or logout that failed, or one attempted in the
// wrong session state. It is never retried.
type AuthError struct {
	Source string
	Op     string // the portal operation that failed
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s %s failed: %s", e.Source, e.Op, e.Reason)
}

// InvalidTermError reports a semester or year value the portal does not
// offer, along with the values it does.
type InvalidTermError struct {
	Field string // "semester" or "year"
	Value string
	Valid []string
}

func (e *InvalidTermError) Error() string {
	return fmt.Sprintf("invalid %s %q, must be one of: %s", e.Field, e.Value, strings.Join(e.Valid, ", "))
}
