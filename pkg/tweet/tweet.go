// Package tweet defines the record type returned by the Tweets API together
// with the identity policy used to deduplicate records and the date window
// the API is queried with.
package tweet

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CursorLayout is the timestamp layout the Tweets API expects for
// startDate/endDate query parameters (UTC, second precision).
const CursorLayout = "2006-01-02T15:04:05Z"

// Tweet is a single time-stamped text record.
type Tweet struct {
	ID    string    `json:"id"`
	Stamp time.Time `json:"stamp"`
	Text  string    `json:"text"`
}

// stampLayouts are tried in order when decoding the "stamp" field.
// Stamps without zone information are taken as UTC.
var stampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
}

// UnmarshalJSON decodes a tweet and normalises its stamp to UTC.
func (t *Tweet) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    string `json:"id"`
		Stamp string `json:"stamp"`
		Text  string `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	stamp, err := ParseStamp(raw.Stamp)
	if err != nil {
		return fmt.Errorf("tweet %q: %w", raw.ID, err)
	}

	t.ID = raw.ID
	t.Stamp = stamp
	t.Text = raw.Text
	return nil
}

// ParseStamp parses an API timestamp into a UTC time.
func ParseStamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range stampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid stamp %q", s)
}

// FormatCursor renders ts the way the API expects a window bound.
func FormatCursor(ts time.Time) string {
	return ts.UTC().Format(CursorLayout)
}
