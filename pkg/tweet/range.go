package tweet

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRange is returned by Validate when Start is not before End.
	ErrInvalidRange = errors.New("range start must be before end")

	// ErrRangeTooLong is returned when End - Start does not fit in a
	// time.Duration (about 292 years).
	ErrRangeTooLong = errors.New("range too long")
)

// Range is a date window queried against the API. Both bounds are sent as
// query parameters; the API compares them inclusively.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewRange builds a range with both bounds normalised to UTC.
func NewRange(start, end time.Time) Range {
	return Range{Start: start.UTC(), End: end.UTC()}
}

// Validate checks the start < end invariant and that the range's duration is
// representable. The retrieval core assumes both hold; callers at the input
// boundary are expected to call Validate.
func (r Range) Validate() error {
	if !r.Start.Before(r.End) {
		return fmt.Errorf("%w: %s >= %s", ErrInvalidRange, FormatCursor(r.Start), FormatCursor(r.End))
	}
	if !r.Bounded() {
		return fmt.Errorf("%w: %s", ErrRangeTooLong, r)
	}
	return nil
}

// Bounded reports whether Duration is exact, i.e. End - Start did not
// saturate at the maximum time.Duration.
func (r Range) Bounded() bool {
	return r.Start.Add(r.Duration()).Equal(r.End)
}

// Duration returns End - Start. It saturates for ranges that are not Bounded.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// WithStart returns a copy of r starting at ts.
func (r Range) WithStart(ts time.Time) Range {
	r.Start = ts.UTC()
	return r
}

// String renders the range in cursor format.
func (r Range) String() string {
	return "[" + FormatCursor(r.Start) + ", " + FormatCursor(r.End) + "]"
}
