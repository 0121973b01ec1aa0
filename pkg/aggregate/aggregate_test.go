package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/tweetfilter/internal/testutil"
	"github.com/Sternrassler/tweetfilter/pkg/client"
	"github.com/Sternrassler/tweetfilter/pkg/pagination"
	"github.com/Sternrassler/tweetfilter/pkg/partition"
	"github.com/Sternrassler/tweetfilter/pkg/tweet"
)

var (
	day0 = time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)
	year = tweet.NewRange(day0, day0.AddDate(1, 0, 0))
)

func newAggregator(t *testing.T, api *testutil.MockTweetsAPI, mutate func(*Config)) *Aggregator {
	t.Helper()

	c, err := client.New(client.DefaultConfig(api.URL()))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	cfg := DefaultConfig()
	cfg.Partitions = 4
	cfg.Pagination.Timeout = 5 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	return New(c, cfg)
}

// yearOfTweets spreads n tweets over 2016 starting one hour in, so none of
// them sits on a quarter boundary.
func yearOfTweets(n int) []tweet.Tweet {
	step := year.Duration() / time.Duration(n+1)
	return testutil.GenerateTweets(day0.Add(time.Hour), n, step.Truncate(time.Second))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Positive(t, cfg.Partitions)
	assert.Equal(t, PolicyAbort, cfg.Policy)
	assert.Equal(t, 0, cfg.MaxConcurrency)
	assert.Equal(t, pagination.DefaultConfig(), cfg.Pagination)
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"abort", PolicyAbort, false},
		{"degrade", PolicyDegrade, false},
		{"", PolicyAbort, false},
		{"ignore", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRetrieve_UnionOfPartitions(t *testing.T) {
	tweets := yearOfTweets(1000)
	api := testutil.NewMockTweetsAPI(tweets, 100)
	defer api.Close()

	res, err := newAggregator(t, api, nil).Retrieve(context.Background(), year)
	require.NoError(t, err)

	assert.Equal(t, 1000, res.Count)
	require.Len(t, res.Tweets, 1000)
	assert.Empty(t, res.Failed)
	require.Len(t, res.Partitions, 4)

	// Partition order then stamp order reproduces the generated order.
	for i := range tweets {
		assert.Equal(t, tweets[i].Text, res.Tweets[i].Text)
	}

	kept := 0
	for i, p := range res.Partitions {
		assert.Equal(t, i, p.Index)
		assert.Empty(t, p.Error)
		kept += p.Kept
	}
	assert.Equal(t, 1000, kept)

	_, err = uuid.Parse(res.RunID)
	assert.NoError(t, err)
}

func TestRetrieve_BoundaryTweetCountedOnce(t *testing.T) {
	parts, err := partition.Split(year, 4)
	require.NoError(t, err)

	tweets := []tweet.Tweet{
		{ID: "a", Stamp: day0.Add(time.Hour), Text: "first"},
		{ID: "b", Stamp: parts[1].Start, Text: "on the boundary"},
		{ID: "c", Stamp: parts[3].Start.Add(time.Hour), Text: "last"},
	}
	api := testutil.NewMockTweetsAPI(tweets, 100)
	defer api.Close()

	res, err := newAggregator(t, api, nil).Retrieve(context.Background(), year)
	require.NoError(t, err)

	// Partitions 0 and 1 both return the boundary tweet.
	assert.Equal(t, 2, res.Partitions[0].Kept)
	assert.Equal(t, 1, res.Partitions[1].Kept)
	assert.Equal(t, 3, res.Count)
}

func TestRetrieve_SameTextDifferentIDsCollapse(t *testing.T) {
	tweets := []tweet.Tweet{
		{ID: "1", Stamp: day0.Add(time.Hour), Text: "hello"},
		{ID: "2", Stamp: day0.AddDate(0, 9, 0), Text: "hello"},
	}
	api := testutil.NewMockTweetsAPI(tweets, 100)
	defer api.Close()

	res, err := newAggregator(t, api, nil).Retrieve(context.Background(), year)
	require.NoError(t, err)

	require.Equal(t, 1, res.Count)
	assert.Equal(t, "1", res.Tweets[0].ID)
}

func TestRetrieve_PartitionFailureAborts(t *testing.T) {
	parts, err := partition.Split(year, 4)
	require.NoError(t, err)

	api := testutil.NewMockTweetsAPI(yearOfTweets(400), 100)
	defer api.Close()
	api.AddFailure(&testutil.FailureRule{
		Match:    func(w tweet.Range) bool { return w.End.Equal(parts[2].End) },
		Response: testutil.NewNotFoundResponse(),
	})

	res, err := newAggregator(t, api, nil).Retrieve(context.Background(), year)
	require.Error(t, err)
	assert.Nil(t, res)

	var pfe *PartialFailureError
	require.ErrorAs(t, err, &pfe)
	assert.Equal(t, []int{2}, pfe.Indices())
	assert.Equal(t, 4, pfe.Total)
	assert.ErrorIs(t, err, client.ErrBadStatus)
	assert.Contains(t, err.Error(), "Not Found")

	var fe *client.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 404, fe.StatusCode)
}

func TestRetrieve_PartitionFailureDegrades(t *testing.T) {
	parts, err := partition.Split(year, 4)
	require.NoError(t, err)

	tweets := yearOfTweets(400)
	api := testutil.NewMockTweetsAPI(tweets, 100)
	defer api.Close()
	api.AddFailure(&testutil.FailureRule{
		Match:    func(w tweet.Range) bool { return w.End.Equal(parts[2].End) },
		Response: testutil.NewNotFoundResponse(),
	})

	agg := newAggregator(t, api, func(cfg *Config) { cfg.Policy = PolicyDegrade })
	res, err := agg.Retrieve(context.Background(), year)

	var pfe *PartialFailureError
	require.ErrorAs(t, err, &pfe)
	assert.Equal(t, []int{2}, pfe.Indices())

	require.NotNil(t, res)
	assert.Equal(t, []int{2}, res.Failed)
	assert.NotEmpty(t, res.Partitions[2].Error)

	want := 0
	for _, tw := range tweets {
		if tw.Stamp.Before(parts[2].Start) || tw.Stamp.After(parts[2].End) {
			want++
		}
	}
	assert.Equal(t, want, res.Count)
	assert.Less(t, res.Count, len(tweets))
}

func TestRetrieve_MultipleFailuresDegrade(t *testing.T) {
	parts, err := partition.Split(year, 4)
	require.NoError(t, err)

	api := testutil.NewMockTweetsAPI(yearOfTweets(40), 100)
	defer api.Close()
	api.AddFailure(&testutil.FailureRule{
		Match: func(w tweet.Range) bool {
			return w.End.Equal(parts[0].End) || w.End.Equal(parts[3].End)
		},
		Response: testutil.NewServerErrorResponse(),
	})

	agg := newAggregator(t, api, func(cfg *Config) { cfg.Policy = PolicyDegrade })
	res, err := agg.Retrieve(context.Background(), year)

	var pfe *PartialFailureError
	require.ErrorAs(t, err, &pfe)
	assert.Equal(t, []int{0, 3}, pfe.Indices())
	assert.Equal(t, []int{0, 3}, res.Failed)
}

func TestRetrieve_SinglePartitionMatchesPaginator(t *testing.T) {
	tweets := yearOfTweets(333)
	api := testutil.NewMockTweetsAPI(tweets, 100)
	defer api.Close()

	agg := newAggregator(t, api, func(cfg *Config) { cfg.Partitions = 1 })
	res, err := agg.Retrieve(context.Background(), year)
	require.NoError(t, err)

	direct, err := pagination.NewPaginator(agg.fetcher, agg.config.Pagination).Collect(context.Background(), year)
	require.NoError(t, err)

	assert.Equal(t, direct.Tweets, res.Tweets)
}

func TestRetrieve_MaxConcurrency(t *testing.T) {
	api := testutil.NewMockTweetsAPI(yearOfTweets(200), 100)
	defer api.Close()

	agg := newAggregator(t, api, func(cfg *Config) {
		cfg.Partitions = 8
		cfg.MaxConcurrency = 2
	})
	res, err := agg.Retrieve(context.Background(), year)
	require.NoError(t, err)

	assert.Equal(t, 200, res.Count)
	assert.Len(t, res.Partitions, 8)
}

func TestRetrieve_InvalidPartitionCount(t *testing.T) {
	api := testutil.NewMockTweetsAPI(nil, 100)
	defer api.Close()

	agg := newAggregator(t, api, func(cfg *Config) { cfg.Partitions = -1 })
	_, err := agg.Retrieve(context.Background(), year)

	assert.ErrorIs(t, err, partition.ErrInvalidPartitionCount)
	assert.Equal(t, 0, api.GetRequestCount())
}

func TestRetrieve_ContextCancelled(t *testing.T) {
	api := testutil.NewMockTweetsAPI(yearOfTweets(10), 100)
	defer api.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newAggregator(t, api, nil).Retrieve(ctx, year)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPartialFailureError(t *testing.T) {
	cause := errors.New("boom")
	err := &PartialFailureError{
		Total: 3,
		Failed: []PartitionError{
			{Index: 1, Range: year, Err: cause},
		},
	}

	assert.Equal(t, "1 of 3 partitions failed; partition 1 "+year.String()+": boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, []int{1}, err.Indices())
}
