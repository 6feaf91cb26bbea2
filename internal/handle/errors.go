package handle

import (
	"errors"
	"fmt"
)

// ErrWrongCategory is returned when constructing a typed handle from a
// device of another category.
var ErrWrongCategory = errors.New("handle: wrong device category")

// Range is an allowed numeric interval, inclusive.
type Range struct {
	Min float64
	Max float64
}

// PreconditionError rejects a command because of local device state, before
// any remote call is attempted. Bounds is set for locked-range violations.
type PreconditionError struct {
	Reason string
	Bounds *Range
}

func (e *PreconditionError) Error() string {
	if e.Bounds != nil {
		return fmt.Sprintf("handle: command rejected: %s (allowed range %g-%g)", e.Reason, e.Bounds.Min, e.Bounds.Max)
	}
	return fmt.Sprintf("handle: command rejected: %s", e.Reason)
}
