package main

import (
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/tweetfilter/pkg/aggregate"
	"github.com/Sternrassler/tweetfilter/pkg/report"
)

func newFetchCmd(a *app) *cobra.Command {
	var start, end, output string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Print every distinct tweet in a date range",
		Example: `  tweetfilter fetch --start 2016-01-01 --end 2018-01-01
  tweetfilter fetch --start 2016-01-01T00:00:00Z --end 2016-01-02T00:00:00Z --partitions 2 --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRange(start, end)
			if err != nil {
				return err
			}
			rep, err := report.New(report.Format(output), cmd.OutOrStdout())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, cleanup, err := a.newClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := aggregate.New(c, a.cfg.Aggregate()).Retrieve(ctx, r)
			if res != nil {
				if rerr := rep.Report(res); rerr != nil {
					return rerr
				}
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&start, "start", "", "range start (YYYY-MM-DD or RFC3339)")
	f.StringVar(&end, "end", "", "range end (YYYY-MM-DD or RFC3339)")
	f.StringVarP(&output, "output", "o", string(report.FormatText), "output format (text, json)")
	f.Int("partitions", runtime.NumCPU(), "number of partitions retrieved concurrently")
	f.Int("max-concurrency", 0, "limit on concurrent partitions (0 = all)")
	f.String("policy", string(aggregate.PolicyAbort), "on partition failure: abort or degrade")
	f.Int("retries", 1, "attempts per page for temporary failures")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}
