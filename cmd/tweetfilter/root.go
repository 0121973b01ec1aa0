package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/tweetfilter/internal/config"
	"github.com/Sternrassler/tweetfilter/pkg/client"
	"github.com/Sternrassler/tweetfilter/pkg/logging"
	"github.com/Sternrassler/tweetfilter/pkg/tweet"
)

var version = "dev"

// app carries state shared by all subcommands once flags are parsed.
type app struct {
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tweetfilter",
		Short: "Retrieve distinct tweets in a date range",
		Long: `tweetfilter retrieves the complete, duplicate-free set of tweets in a date
range from the Tweets API. The range is split into partitions that are paged
through concurrently and merged.

Example usage:
  tweetfilter fetch --start 2016-01-01 --end 2018-01-01
  tweetfilter fetch --start 2016-01-01 --end 2016-02-01 --output json
  tweetfilter serve --addr :8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is .tweetfilter.yaml)")
	pf.String("base-url", config.DefaultBaseURL, "Tweets API base URL")
	pf.Int("page-size", client.DefaultPageSize, "page size of the Tweets API")
	pf.Float64("rps", 0, "client-side request rate limit (0 disables)")
	pf.String("redis-url", "", "Redis URL for the page cache (empty disables)")
	pf.String("log-level", "info", "log level (debug, info, warn, error, disabled)")
	pf.Bool("pretty", false, "human-readable log output")

	root.AddCommand(newFetchCmd(a), newServeCmd(a), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tweetfilter %s\n", version)
		},
	}
}

// init loads configuration and sets up logging.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	logging.Setup(cfg.Logging())
	log.Debug().
		Str("base_url", cfg.API.BaseURL).
		Int("partitions", cfg.Retrieval.Partitions).
		Str("policy", cfg.Retrieval.Policy).
		Bool("cache", cfg.Cache.RedisURL != "").
		Msg("Configuration loaded")

	return nil
}

// newClient builds the API client. A configured but unreachable Redis only
// disables the page cache.
func (a *app) newClient(ctx context.Context) (*client.Client, func(), error) {
	cc := a.cfg.Client()

	var rdb *redis.Client
	if a.cfg.Cache.RedisURL != "" {
		opts, err := redis.ParseURL(a.cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis unavailable, page cache disabled")
			rdb.Close()
			rdb = nil
		} else {
			log.Info().Str("addr", opts.Addr).Msg("Connected to Redis, page cache enabled")
		}
	}
	cc.Redis = rdb

	c, err := client.New(cc)
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, nil, fmt.Errorf("create client: %w", err)
	}

	cleanup := func() {
		c.Close()
		if rdb != nil {
			rdb.Close()
		}
	}
	return c, cleanup, nil
}

// dateLayouts are accepted for range bounds on the command line and over HTTP.
var dateLayouts = []string{"2006-01-02", time.RFC3339}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC3339)", s)
}

func parseRange(start, end string) (tweet.Range, error) {
	s, err := parseDate(start)
	if err != nil {
		return tweet.Range{}, fmt.Errorf("start: %w", err)
	}
	e, err := parseDate(end)
	if err != nil {
		return tweet.Range{}, fmt.Errorf("end: %w", err)
	}
	r := tweet.NewRange(s, e)
	if err := r.Validate(); err != nil {
		return tweet.Range{}, err
	}
	return r, nil
}
