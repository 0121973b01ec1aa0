package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces all cache keys in Redis.
const KeyPrefix = "tweetfilter:page"

// Key identifies a cached page by request path and query.
type Key struct {
	// Path is the API path, e.g. "/api/v1/Tweets"
	Path string

	// Query holds the window bounds (startDate, endDate)
	Query url.Values
}

// String generates a deterministic Redis key.
// Format: tweetfilter:page:path:name=value:name=value (names sorted)
//
// Example:
//
//	tweetfilter:page:api/v1/Tweets:endDate=2017-01-01T00:00:00Z:startDate=2016-01-01T00:00:00Z
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(KeyPrefix)

	if path := strings.Trim(k.Path, "/"); path != "" {
		b.WriteByte(':')
		b.WriteString(path)
	}

	names := make([]string, 0, len(k.Query))
	for name := range k.Query {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values := append([]string(nil), k.Query[name]...)
		sort.Strings(values)
		b.WriteByte(':')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.Join(values, ","))
	}

	return b.String()
}
