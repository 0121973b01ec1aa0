// Package report renders retrieval results.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/Sternrassler/tweetfilter/pkg/aggregate"
	"github.com/Sternrassler/tweetfilter/pkg/tweet"
)

// Reporter writes a result somewhere.
type Reporter interface {
	Report(res *aggregate.Result) error
}

// Format names a reporter.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// New returns the reporter for format writing to w.
func New(format Format, w io.Writer) (Reporter, error) {
	switch format {
	case FormatText, "":
		return NewText(w), nil
	case FormatJSON:
		return NewJSON(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want %q or %q)", format, FormatText, FormatJSON)
	}
}

// Text prints every tweet followed by a one-line summary.
//
//	ID: 1, 2016-01-01T00:00:00Z
//	Tweet: hello
//
//	Total number of distinct tweets between 2016-01-01T00:00:00Z and 2018-01-01T00:00:00Z is 1
type Text struct {
	w       io.Writer
	summary *color.Color
	warn    *color.Color
}

// NewText creates a text reporter. Colors follow fatih/color's terminal
// detection unless changed with SetColor.
func NewText(w io.Writer) *Text {
	return &Text{
		w:       w,
		summary: color.New(color.FgGreen, color.Bold),
		warn:    color.New(color.FgYellow),
	}
}

// SetColor forces colored output on or off.
func (t *Text) SetColor(enabled bool) {
	for _, c := range []*color.Color{t.summary, t.warn} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// Report implements Reporter.
func (t *Text) Report(res *aggregate.Result) error {
	bw := bufio.NewWriter(t.w)

	for _, tw := range res.Tweets {
		fmt.Fprintf(bw, "ID: %s, %s\n", tw.ID, tw.Stamp.Format(time.RFC3339))
		fmt.Fprintf(bw, "Tweet: %s\n\n", tw.Text)
	}

	if len(res.Failed) > 0 {
		t.warn.Fprintf(bw, "Partitions %v failed; the count below is incomplete\n", res.Failed)
	}
	t.summary.Fprintf(bw, "Total number of distinct tweets between %s and %s is %d\n",
		tweet.FormatCursor(res.Range.Start), tweet.FormatCursor(res.Range.End), res.Count)

	return bw.Flush()
}

// JSON writes the result as a single indented JSON document.
type JSON struct {
	w io.Writer
}

// NewJSON creates a JSON reporter.
func NewJSON(w io.Writer) *JSON {
	return &JSON{w: w}
}

// Report implements Reporter.
func (j *JSON) Report(res *aggregate.Result) error {
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
