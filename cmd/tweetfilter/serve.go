package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/tweetfilter/pkg/aggregate"
	"github.com/Sternrassler/tweetfilter/pkg/logging"
	"github.com/Sternrassler/tweetfilter/pkg/metrics"
	"github.com/Sternrassler/tweetfilter/pkg/ratelimit"
	"github.com/Sternrassler/tweetfilter/pkg/report"
	"github.com/Sternrassler/tweetfilter/pkg/tweet"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve retrievals over HTTP",
		Long: `serve exposes:
  GET /health                                  liveness
  GET /v1/status                               client rate limit state
  GET /metrics                                 Prometheus metrics
  GET /v1/tweets?startDate=...&endDate=...     retrieval result as JSON`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, cleanup, err := a.newClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			srv := newServer(aggregate.New(c, a.cfg.Aggregate()))
			srv.rateLimit = c.RateLimitState
			return srv.run(ctx, a.cfg.Server.Addr)
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().Int("partitions", 0, "number of partitions per request (default from config)")
	cmd.Flags().String("policy", string(aggregate.PolicyAbort), "on partition failure: abort or degrade")
	return cmd
}

type retriever interface {
	Retrieve(ctx context.Context, r tweet.Range) (*aggregate.Result, error)
}

type server struct {
	agg       retriever
	rateLimit func() ratelimit.State // nil when the retriever is not paced
	logger    zerolog.Logger
}

func newServer(agg retriever) *server {
	return &server{agg: agg, logger: logging.NewLogger("server")}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", healthHandler)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/v1/status", s.handleStatus)
	r.Get("/v1/tweets", s.handleTweets)
	return r
}

func (s *server) run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting tweetfilter server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type statusResponse struct {
	Status     string          `json:"status"`
	RateLimit  ratelimit.State `json:"rate_limit"`
	Saturated  bool            `json:"saturated"`
	NextSlotMS int64           `json:"next_slot_ms"`
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := ratelimit.State{ObservedAt: time.Now()}
	if s.rateLimit != nil {
		st = s.rateLimit()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statusResponse{
		Status:     "ok",
		RateLimit:  st,
		Saturated:  st.Saturated(),
		NextSlotMS: st.NextSlotIn().Milliseconds(),
	})
}

func (s *server) handleTweets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := parseRange(q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.agg.Retrieve(r.Context(), rng)
	if res == nil {
		status := http.StatusInternalServerError
		var pfe *aggregate.PartialFailureError
		if errors.As(err, &pfe) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err)
		return
	}
	if err != nil {
		w.Header().Set("X-Partial-Result", "true")
	}

	w.Header().Set("Content-Type", "application/json")
	if err := report.NewJSON(w).Report(res); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
