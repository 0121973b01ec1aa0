// Package pagination walks a single date window of the Tweets API page by
// page until the window is exhausted.
//
// The API exposes neither a total count nor a cursor token. Each request
// carries a startDate/endDate window and returns at most PageSize tweets
// ordered by stamp. The paginator therefore:
//   - advances startDate to the stamp of the last tweet received, so the
//     boundary tweet is normally returned again as the first of the next page
//   - deduplicates by text as pages are merged, first occurrence wins
//   - stops on an empty page or on the first page shorter than PageSize
//
// Example usage:
//
//	p := pagination.NewPaginator(apiClient, pagination.DefaultConfig())
//	res, err := p.Collect(ctx, tweet.NewRange(start, end))
//
// A failed page fetch aborts the walk and discards what was collected.
// MaxPages and StallLimit bound the loop when the API keeps answering with
// full pages.
package pagination
