package roster

import (
	"errors"
	"fmt"
)

var (
	ErrIndexOutOfRange = errors.New("roster: index out of range")
	ErrBlankName       = errors.New("roster: name is blank")
	ErrDuplicateName   = errors.New("roster: name already in roster")
)

// IndexError reports an index outside [0, Len). It matches ErrIndexOutOfRange.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("roster: index %d out of range [0,%d)", e.Index, e.Len)
}

func (e *IndexError) Is(target error) bool { return target == ErrIndexOutOfRange }
