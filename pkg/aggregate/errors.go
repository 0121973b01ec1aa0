package aggregate

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/tweetfilter/pkg/tweet"
)

// PartitionError is the failure of a single partition.
type PartitionError struct {
	Index int
	Range tweet.Range
	Err   error
}

// Error implements the error interface.
func (e PartitionError) Error() string {
	return fmt.Sprintf("partition %d %s: %v", e.Index, e.Range, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e PartitionError) Unwrap() error {
	return e.Err
}

// PartialFailureError is returned when one or more partitions failed.
// Partitions that were only cancelled because a sibling failed are not listed.
type PartialFailureError struct {
	Total  int
	Failed []PartitionError
}

// Error implements the error interface.
func (e *PartialFailureError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d partitions failed", len(e.Failed), e.Total)
	for _, f := range e.Failed {
		b.WriteString("; ")
		b.WriteString(f.Error())
	}
	return b.String()
}

// Unwrap exposes every partition cause to errors.Is/As.
func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f
	}
	return errs
}

// Indices returns the failed partition indices in ascending order.
func (e *PartialFailureError) Indices() []int {
	out := make([]int, len(e.Failed))
	for i, f := range e.Failed {
		out[i] = f.Index
	}
	return out
}
