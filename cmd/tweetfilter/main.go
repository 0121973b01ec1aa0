// Command tweetfilter retrieves every distinct tweet in a date range from the
// Tweets API, either once from the command line or on demand over HTTP.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
