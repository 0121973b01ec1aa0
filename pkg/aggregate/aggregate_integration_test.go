//go:build integration

package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/tweetfilter/internal/testutil"
	"github.com/Sternrassler/tweetfilter/pkg/cache"
	"github.com/Sternrassler/tweetfilter/pkg/client"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: endpoint})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newCachedAggregator(t *testing.T, api *testutil.MockTweetsAPI, rdb *redis.Client) *Aggregator {
	t.Helper()

	cfg := client.DefaultConfig(api.URL())
	cfg.Redis = rdb
	cfg.Cache = cache.Config{DefaultTTL: time.Minute, StaleFor: time.Hour}

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	acfg := DefaultConfig()
	acfg.Partitions = 4
	return New(c, acfg)
}

func TestRetrieve_Integration_RepeatServedFromCache(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	api := testutil.NewMockTweetsAPI(yearOfTweets(1000), 100)
	defer api.Close()

	agg := newCachedAggregator(t, api, rdb)
	ctx := context.Background()

	first, err := agg.Retrieve(ctx, year)
	if err != nil {
		t.Fatalf("First retrieval failed: %v", err)
	}
	requests := api.GetRequestCount()

	second, err := agg.Retrieve(ctx, year)
	if err != nil {
		t.Fatalf("Second retrieval failed: %v", err)
	}

	if got := api.GetRequestCount(); got != requests {
		t.Errorf("Expected no new API requests, got %d more", got-requests)
	}
	if first.Count != 1000 || second.Count != first.Count {
		t.Errorf("Counts = %d / %d, want 1000 / 1000", first.Count, second.Count)
	}
	if first.RunID == second.RunID {
		t.Error("Expected distinct run IDs")
	}
}

func TestRetrieve_Integration_Revalidation(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	api := testutil.NewMockTweetsAPI(yearOfTweets(200), 100)
	defer api.Close()
	// Pages expire immediately, so the second run revalidates every page.
	api.EnableETags()

	agg := newCachedAggregator(t, api, rdb)
	ctx := context.Background()

	if _, err := agg.Retrieve(ctx, year); err != nil {
		t.Fatalf("First retrieval failed: %v", err)
	}
	pages := api.GetRequestCount()

	res, err := agg.Retrieve(ctx, year)
	if err != nil {
		t.Fatalf("Second retrieval failed: %v", err)
	}

	if got := api.GetConditionalCount(); got != pages {
		t.Errorf("Expected %d conditional requests, got %d", pages, got)
	}
	if res.Count != 200 {
		t.Errorf("Count = %d, want 200", res.Count)
	}
}

func TestRetrieve_Integration_FailuresNotCached(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	api := testutil.NewMockTweetsAPI(yearOfTweets(100), 100)
	defer api.Close()
	api.AddFailure(&testutil.FailureRule{Response: testutil.NewServerErrorResponse(), Times: 1})

	agg := newCachedAggregator(t, api, rdb)
	ctx := context.Background()

	if _, err := agg.Retrieve(ctx, year); err == nil {
		t.Fatal("Expected first retrieval to fail")
	}

	res, err := agg.Retrieve(ctx, year)
	if err != nil {
		t.Fatalf("Second retrieval failed: %v", err)
	}
	if res.Count != 100 {
		t.Errorf("Count = %d, want 100", res.Count)
	}
}
