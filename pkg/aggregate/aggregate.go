// Package aggregate retrieves a date range by splitting it into partitions,
// walking every partition concurrently and merging the results.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/tweetfilter/pkg/logging"
	"github.com/Sternrassler/tweetfilter/pkg/pagination"
	"github.com/Sternrassler/tweetfilter/pkg/partition"
	"github.com/Sternrassler/tweetfilter/pkg/tweet"
)

// Policy decides what a run returns when a partition fails.
type Policy string

const (
	// PolicyAbort cancels the remaining partitions on the first failure and
	// returns no result.
	PolicyAbort Policy = "abort"

	// PolicyDegrade lets every partition finish and returns the merged
	// result of the successful ones together with the failure.
	PolicyDegrade Policy = "degrade"
)

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyAbort, PolicyDegrade:
		return Policy(s), nil
	case "":
		return PolicyAbort, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want %q or %q)", s, PolicyAbort, PolicyDegrade)
	}
}

// Config holds aggregator configuration
type Config struct {
	// Partitions is the number of sub-ranges retrieved concurrently.
	Partitions int

	// MaxConcurrency limits concurrent partition walks. 0 means no limit.
	MaxConcurrency int

	// Policy on partition failure
	Policy Policy

	// Pagination is used for every partition walk.
	Pagination pagination.Config
}

// DefaultConfig returns the default aggregator configuration
func DefaultConfig() Config {
	return Config{
		Partitions: runtime.NumCPU(),
		Policy:     PolicyAbort,
		Pagination: pagination.DefaultConfig(),
	}
}

// PartitionStat describes the walk of one partition.
type PartitionStat struct {
	Index    int           `json:"index"`
	Range    tweet.Range   `json:"range"`
	Pages    int           `json:"pages"`
	Fetched  int           `json:"fetched"`
	Kept     int           `json:"kept"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Result is the merged outcome of a run.
type Result struct {
	RunID      string          `json:"run_id"`
	Range      tweet.Range     `json:"range"`
	Tweets     []tweet.Tweet   `json:"tweets"`
	Count      int             `json:"count"`
	Partitions []PartitionStat `json:"partitions"`
	Failed     []int           `json:"failed,omitempty"`
	Duration   time.Duration   `json:"duration_ns"`
}

// Aggregator runs partitioned retrievals against a PageFetcher.
type Aggregator struct {
	fetcher pagination.PageFetcher
	config  Config
	logger  zerolog.Logger
}

// New creates an aggregator. The fetcher is shared by all partitions and
// must be safe for concurrent use.
func New(fetcher pagination.PageFetcher, cfg Config) *Aggregator {
	if cfg.Partitions == 0 {
		cfg.Partitions = runtime.NumCPU()
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyAbort
	}

	return &Aggregator{
		fetcher: fetcher,
		config:  cfg,
		logger:  logging.NewLogger("aggregator"),
	}
}

type slot struct {
	res *pagination.Result
	err error
	dur time.Duration
}

// Retrieve returns the distinct tweets in r. Tweets are ordered by partition
// index, then by the order they were first received within the partition.
//
// A failed partition yields a *PartialFailureError. Under PolicyAbort the
// result is nil; under PolicyDegrade the result of the remaining partitions
// is returned alongside the error.
func (a *Aggregator) Retrieve(ctx context.Context, r tweet.Range) (*Result, error) {
	parts, err := partition.Split(r, a.config.Partitions)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.NewString()
	logger := logging.WithRun(a.logger, runID)
	paginator := pagination.NewPaginator(a.fetcher, a.config.Pagination)

	logger.Info().
		Str("range", r.String()).
		Int("partitions", len(parts)).
		Str("policy", string(a.config.Policy)).
		Msg("Starting retrieval")

	slots := make([]slot, len(parts))

	var g *errgroup.Group
	gctx := ctx
	if a.config.Policy == PolicyAbort {
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	if a.config.MaxConcurrency > 0 {
		g.SetLimit(a.config.MaxConcurrency)
	}

	for i, part := range parts {
		i, part := i, part
		g.Go(func() error {
			plog := logging.WithPartition(logger, i)
			began := time.Now()
			res, err := paginator.WithLogger(plog).Collect(gctx, part)
			slots[i] = slot{res: res, err: err, dur: time.Since(began)}
			partitionDuration.Observe(slots[i].dur.Seconds())

			if err != nil {
				if a.config.Policy == PolicyAbort {
					return err
				}
				return nil
			}
			plog.Info().
				Int("pages", res.Stats.Pages).
				Int("kept", res.Stats.Kept).
				Dur("duration", slots[i].dur).
				Msg("Partition complete")
			return nil
		})
	}
	waitErr := g.Wait()

	if err := ctx.Err(); err != nil {
		runsTotal.WithLabelValues("cancelled").Inc()
		return nil, fmt.Errorf("retrieve %s: %w", r, err)
	}

	set := tweet.NewSet(0)
	stats := make([]PartitionStat, len(parts))
	var failed []PartitionError

	for i, s := range slots {
		stats[i] = PartitionStat{Index: i, Range: parts[i], Duration: s.dur}
		if s.err != nil {
			stats[i].Error = s.err.Error()
			if siblingCancelled(s.err, gctx, ctx) {
				continue
			}
			failed = append(failed, PartitionError{Index: i, Range: parts[i], Err: s.err})
			logger.Warn().
				Err(s.err).
				Int("partition", i).
				Str("window", parts[i].String()).
				Msg("Partition failed")
			continue
		}
		if s.res == nil {
			continue
		}
		stats[i].Pages = s.res.Stats.Pages
		stats[i].Fetched = s.res.Stats.Fetched
		stats[i].Kept = s.res.Stats.Kept
		set.AddAll(s.res.Tweets)
	}

	if waitErr != nil && len(failed) == 0 {
		// Every failure looked like a cancellation; report the first one.
		runsTotal.WithLabelValues("failed").Inc()
		return nil, waitErr
	}

	if len(failed) > 0 {
		partitionsFailedTotal.Add(float64(len(failed)))
		pfe := &PartialFailureError{Total: len(parts), Failed: failed}

		if a.config.Policy == PolicyAbort {
			runsTotal.WithLabelValues("failed").Inc()
			logger.Error().
				Err(pfe).
				Ints("failed", pfe.Indices()).
				Msg("Retrieval aborted")
			return nil, pfe
		}

		res := a.result(runID, r, set, stats, start)
		res.Failed = pfe.Indices()
		runsTotal.WithLabelValues("degraded").Inc()
		logger.Warn().
			Ints("failed", res.Failed).
			Int("count", res.Count).
			Msg("Retrieval completed with failed partitions")
		return res, pfe
	}

	res := a.result(runID, r, set, stats, start)
	runsTotal.WithLabelValues("success").Inc()
	logger.Info().
		Int("count", res.Count).
		Dur("duration", res.Duration).
		Msg("Retrieval complete")
	return res, nil
}

func (a *Aggregator) result(runID string, r tweet.Range, set *tweet.Set, stats []PartitionStat, start time.Time) *Result {
	res := &Result{
		RunID:      runID,
		Range:      r,
		Tweets:     set.Items(),
		Count:      set.Len(),
		Partitions: stats,
		Duration:   time.Since(start),
	}
	distinctTweetsTotal.Add(float64(res.Count))
	runDuration.Observe(res.Duration.Seconds())
	return res
}

// siblingCancelled reports whether err only stems from the group context
// being cancelled after another partition failed.
func siblingCancelled(err error, gctx, parent context.Context) bool {
	return gctx.Err() != nil && parent.Err() == nil && errors.Is(err, context.Canceled)
}
