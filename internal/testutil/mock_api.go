// Package testutil provides testing utilities for the Tweets API client.
package testutil

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/Sternrassler/tweetfilter/pkg/tweet"
)

// MockResponse defines a canned response for a mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// FailureRule makes the mock answer with Response for requests matched by Match.
// Times limits how many requests the rule applies to; 0 means always.
type FailureRule struct {
	Match    func(window tweet.Range) bool
	Response MockResponse
	Times    int

	hits int
}

// MockTweetsAPI is an httptest server behaving like the Tweets API:
// GET /api/v1/Tweets?startDate=&endDate= returns up to PageSize tweets with
// startDate <= stamp <= endDate, ordered by stamp.
type MockTweetsAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	tweets   []tweet.Tweet
	pageSize int
	rules    []*FailureRule
	etags    bool
	handler  http.HandlerFunc

	// Tracking
	RequestCount     int
	ConditionalCount int
	Windows          []tweet.Range
	LastHeader       http.Header
}

// NewMockTweetsAPI serves tweets in pages of pageSize.
func NewMockTweetsAPI(tweets []tweet.Tweet, pageSize int) *MockTweetsAPI {
	sorted := append([]tweet.Tweet(nil), tweets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Stamp.Before(sorted[j].Stamp)
	})

	mock := &MockTweetsAPI{
		tweets:   sorted,
		pageSize: pageSize,
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

// URL returns the mock server base URL.
func (m *MockTweetsAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockTweetsAPI) Close() {
	m.server.Close()
}

// Client returns an HTTP client wired to the mock server.
func (m *MockTweetsAPI) Client() *http.Client {
	return m.server.Client()
}

// AddFailure registers a failure rule. Rules are checked in order.
func (m *MockTweetsAPI) AddFailure(rule *FailureRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
}

// EnableETags makes the mock send ETag/Expires headers and answer
// If-None-Match with 304 when the page is unchanged.
func (m *MockTweetsAPI) EnableETags() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etags = true
}

// SetHandler replaces the Tweets handler entirely.
func (m *MockTweetsAPI) SetHandler(handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockTweetsAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockTweetsAPI) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

// GetLastHeader returns the headers of the most recent request.
func (m *MockTweetsAPI) GetLastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastHeader.Clone()
}

// GetWindows returns the windows requested so far, in arrival order.
func (m *MockTweetsAPI) GetWindows() []tweet.Range {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]tweet.Range(nil), m.Windows...)
}

func (m *MockTweetsAPI) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v1/Tweets" {
		http.NotFound(w, r)
		return
	}

	window, err := parseWindow(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.RequestCount++
	m.Windows = append(m.Windows, window)
	m.LastHeader = r.Header.Clone()
	if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
		m.ConditionalCount++
	}
	handler := m.handler
	rule := m.matchRule(window)
	etags := m.etags
	m.mu.Unlock()

	if handler != nil {
		handler(w, r)
		return
	}
	if rule != nil {
		writeResponse(w, rule.Response)
		return
	}

	body, err := json.Marshal(m.page(window))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if etags {
		sum := sha1.Sum(body)
		etag := `"` + hex.EncodeToString(sum[:]) + `"`
		w.Header().Set("ETag", etag)
		w.Header().Set("Expires", time.Now().Add(-time.Second).UTC().Format(http.TimeFormat))
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// matchRule must be called with m.mu held.
func (m *MockTweetsAPI) matchRule(window tweet.Range) *FailureRule {
	for _, rule := range m.rules {
		if rule.Times > 0 && rule.hits >= rule.Times {
			continue
		}
		if rule.Match == nil || rule.Match(window) {
			rule.hits++
			return rule
		}
	}
	return nil
}

func (m *MockTweetsAPI) page(window tweet.Range) []tweet.Tweet {
	out := make([]tweet.Tweet, 0, m.pageSize)
	for _, t := range m.tweets {
		if t.Stamp.Before(window.Start) || t.Stamp.After(window.End) {
			continue
		}
		out = append(out, t)
		if len(out) == m.pageSize {
			break
		}
	}
	return out
}

func parseWindow(q url.Values) (tweet.Range, error) {
	start, err := tweet.ParseStamp(q.Get("startDate"))
	if err != nil {
		return tweet.Range{}, fmt.Errorf("startDate: %w", err)
	}
	end, err := tweet.ParseStamp(q.Get("endDate"))
	if err != nil {
		return tweet.Range{}, fmt.Errorf("endDate: %w", err)
	}
	return tweet.NewRange(start, end), nil
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// GenerateTweets returns n tweets one step apart starting at start, with ids
// "id-1".."id-n" and texts "T1".."Tn".
func GenerateTweets(start time.Time, n int, step time.Duration) []tweet.Tweet {
	out := make([]tweet.Tweet, n)
	for i := 0; i < n; i++ {
		out[i] = tweet.Tweet{
			ID:    fmt.Sprintf("id-%d", i+1),
			Stamp: start.Add(time.Duration(i) * step).UTC(),
			Text:  fmt.Sprintf("T%d", i+1),
		}
	}
	return out
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": "Not Found"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewMalformedResponse creates a 200 OK response whose body is not a tweet array.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"tweets": [`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewSlowResponse creates a 200 OK empty page that arrives after delay.
func NewSlowResponse(delay time.Duration) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `[]`,
		Delay:      delay,
	}
}
