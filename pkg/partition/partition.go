// Package partition splits a date range into contiguous sub-ranges that can
// be retrieved independently.
package partition

import (
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/tweetfilter/pkg/tweet"
)

// ErrInvalidPartitionCount is returned when the requested count is not positive.
var ErrInvalidPartitionCount = errors.New("partition count must be positive")

// Split divides r into n contiguous ranges of equal duration.
//
// The per-partition duration is the ceiling of r's duration divided by n, so
// partition i spans [Start+i*d, Start+(i+1)*d]. Adjacent partitions share
// their boundary instant. Because of the ceiling the last partition may end
// up to n-1 nanoseconds after r.End; it never ends before r.End.
//
// Ranges whose duration does not fit in a time.Duration are rejected with
// tweet.ErrRangeTooLong.
func Split(r tweet.Range, n int) ([]tweet.Range, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPartitionCount, n)
	}
	if !r.Bounded() {
		return nil, fmt.Errorf("%w: %s", tweet.ErrRangeTooLong, r)
	}

	total := int64(r.Duration())
	step := ceilDiv(total, int64(n))

	parts := make([]tweet.Range, n)
	for i := 0; i < n; i++ {
		parts[i] = tweet.Range{
			Start: r.Start.Add(time.Duration(int64(i) * step)),
			End:   r.Start.Add(time.Duration(int64(i+1) * step)),
		}
	}
	if last := &parts[n-1]; last.End.Before(r.End) {
		last.End = r.End
	}
	return parts, nil
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a > 0) == (b > 0) {
		q++
	}
	return q
}
