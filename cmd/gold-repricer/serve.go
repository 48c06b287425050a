package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/Sternrassler/gold-repricer/pkg/logging"
	"github.com/Sternrassler/gold-repricer/pkg/metrics"
	"github.com/Sternrassler/gold-repricer/pkg/pricing"
	"github.com/Sternrassler/gold-repricer/pkg/rates"
	"github.com/Sternrassler/gold-repricer/pkg/repricer"
	"github.com/Sternrassler/gold-repricer/pkg/runstore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the re-pricing trigger and run results over HTTP",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP port",
				EnvVars: []string{"PORT"},
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := openRedis(ctx, c.String("redis-url"))
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	rateStore, closeRates, err := openRateStore(ctx, c)
	if err != nil {
		return err
	}
	defer closeRates()

	api, err := newAdminClient(c, rdb)
	if err != nil {
		return fmt.Errorf("create admin client: %w", err)
	}
	defer api.Close()

	r, err := newRepricer(api, repricerConfig(c, false))
	if err != nil {
		return err
	}

	var runs runStore = newMemoryRuns()
	if rdb != nil {
		runs = runstore.NewManager(rdb, runstore.DefaultTTL)
	}

	// runs are not tied to the signal context; shutdown waits for them instead
	srv := newServer(context.WithoutCancel(c.Context), r, rateStore, runs)
	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(c.Int("port")),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		srv.logger.Info().Str("addr", httpServer.Addr).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	srv.logger.Info().Msg("Shutting down, waiting for active run")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		srv.logger.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	srv.wait()
	return nil
}

type runner interface {
	RunWithID(ctx context.Context, runID string, rates *pricing.RateRecord) (*repricer.RunSummary, error)
}

// server exposes the run trigger. At most one run is active at a time.
type server struct {
	runner  runner
	rates   rates.Store
	runs    runStore
	logger  zerolog.Logger
	baseCtx context.Context

	mu        sync.Mutex
	activeRun string
	wg        sync.WaitGroup
}

func newServer(baseCtx context.Context, r runner, rateStore rates.Store, runs runStore) *server {
	return &server{
		runner:  r,
		rates:   rateStore,
		runs:    runs,
		logger:  logging.NewLogger(logging.ComponentServer),
		baseCtx: baseCtx,
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /apply", s.applyHandler)
	mux.HandleFunc("GET /runs", s.recentHandler)
	mux.HandleFunc("GET /runs/latest", s.latestHandler)
	mux.HandleFunc("GET /runs/{id}", s.runHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// applyHandler starts a run. With ?wait=true it responds with the final
// summary, otherwise with 202 and the run id to poll.
func (s *server) applyHandler(w http.ResponseWriter, r *http.Request) {
	record, err := s.rates.Current(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read current rate")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "rate store unavailable"})
		return
	}
	if record == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No current rates found."})
		return
	}

	runID, ok := s.claim()
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "run already in progress",
			"run_id": runID,
		})
		return
	}

	pending := &repricer.RunSummary{
		RunID:     runID,
		State:     repricer.StateRunning,
		Errors:    []repricer.ItemError{},
		StartedAt: time.Now().UTC(),
	}
	s.store(pending)

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		summary := s.execute(runID, record)
		status := http.StatusOK
		if !summary.Complete {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, summary)
		return
	}

	go s.execute(runID, record)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"state":  string(repricer.StateRunning),
	})
}

// claim reserves the single run slot. It returns the active run id and false
// when a run is already in progress.
func (s *server) claim() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeRun != "" {
		return s.activeRun, false
	}
	s.activeRun = repricer.NewRunID()
	s.wg.Add(1)
	return s.activeRun, true
}

func (s *server) execute(runID string, record *pricing.RateRecord) *repricer.RunSummary {
	defer func() {
		s.mu.Lock()
		s.activeRun = ""
		s.mu.Unlock()
		s.wg.Done()
	}()

	summary, err := s.runner.RunWithID(s.baseCtx, runID, record)
	if summary == nil {
		now := time.Now().UTC()
		summary = &repricer.RunSummary{
			RunID:      runID,
			State:      repricer.StateAborted,
			Errors:     []repricer.ItemError{},
			StartedAt:  now,
			FinishedAt: now,
		}
		if err != nil {
			summary.AbortReason = err.Error()
		}
	}
	s.store(summary)
	return summary
}

func (s *server) store(summary *repricer.RunSummary) {
	if err := s.runs.Save(s.baseCtx, summary); err != nil {
		s.logger.Warn().Err(err).Str("run_id", summary.RunID).Msg("Failed to store run summary")
	}
}

func (s *server) wait() {
	s.wg.Wait()
}

func (s *server) latestHandler(w http.ResponseWriter, r *http.Request) {
	s.writeRun(w, func() (*repricer.RunSummary, error) { return s.runs.Latest(r.Context()) })
}

// recentHandler lists stored runs, newest first. ?limit= caps the count.
func (s *server) recentHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	summaries, err := s.runs.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list run summaries")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "run store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": summaries})
}

func (s *server) runHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.writeRun(w, func() (*repricer.RunSummary, error) { return s.runs.Get(r.Context(), id) })
}

func (s *server) writeRun(w http.ResponseWriter, lookup func() (*repricer.RunSummary, error)) {
	summary, err := lookup()
	if errors.Is(err, runstore.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read run summary")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "run store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
