package market

import (
	"fmt"
	"time"
)

// BadDataError reports a bar table that fails validation. Runs fail fast on
// it before any replay happens.
type BadDataError struct {
	Row    int // zero based, -1 when the problem is not row specific
	Time   time.Time
	Column string
	Reason string
}

func (e *BadDataError) Error() string {
	switch {
	case e.Row < 0 && e.Column != "":
		return fmt.Sprintf("bad data: column %q: %s", e.Column, e.Reason)
	case e.Row < 0:
		return fmt.Sprintf("bad data: %s", e.Reason)
	case e.Column != "":
		return fmt.Sprintf("bad data: row %d (%s) column %q: %s", e.Row, e.Time.Format(time.RFC3339), e.Column, e.Reason)
	default:
		return fmt.Sprintf("bad data: row %d (%s): %s", e.Row, e.Time.Format(time.RFC3339), e.Reason)
	}
}

func badRow(i int, t time.Time, col, format string, args ...any) *BadDataError {
	return &BadDataError{Row: i, Time: t, Column: col, Reason: fmt.Sprintf(format, args...)}
}
