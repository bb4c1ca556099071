package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyRoster   = errors.New("schedule: empty roster")
	ErrNegativeCount = errors.New("schedule: count must be >= 0")
	ErrNoWeekdays    = errors.New("schedule: no deploy weekdays configured")
)

// EmptyRosterError is returned when entries are requested for a roster with
// no names. It matches ErrEmptyRoster with errors.Is.
type EmptyRosterError struct {
	Count int
}

func (e *EmptyRosterError) Error() string {
	return fmt.Sprintf("schedule: cannot assign %d slot(s) from an empty roster", e.Count)
}

func (e *EmptyRosterError) Is(target error) bool { return target == ErrEmptyRoster }
