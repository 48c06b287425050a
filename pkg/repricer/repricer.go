// Package repricer runs the batch re-pricing job: it walks the gold catalog
// page by page, prices every item from the current rate record and writes the
// price back to the item's variant.
//
// A failed write is recorded against its item and the run continues. A failed
// page fetch aborts the run and returns the partial summary with Complete
// unset. Runs share no mutable state, so a Repricer may run concurrently.
package repricer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/gold-repricer/pkg/catalog"
	"github.com/Sternrassler/gold-repricer/pkg/logging"
	"github.com/Sternrassler/gold-repricer/pkg/pagination"
	"github.com/Sternrassler/gold-repricer/pkg/pricing"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// PageFetcher returns the catalog page after cursor ("" for the first page).
type PageFetcher interface {
	FetchPage(ctx context.Context, cursor string) (pagination.Page[catalog.Item], error)
}

// PriceUpdater writes the price of one variant.
type PriceUpdater interface {
	UpdatePrice(ctx context.Context, itemID, variantID string, price int64) (catalog.Ack, error)
}

// Config holds the run configuration.
type Config struct {
	// WriteConcurrency is the number of writes in flight within a page
	WriteConcurrency int

	// Prefetch fetches the next page while the current page is written
	Prefetch bool

	// PageTimeout bounds each page fetch (0 disables)
	PageTimeout time.Duration

	// WritesPerSecond paces price writes across the run (0 = unpaced)
	WritesPerSecond float64

	// DryRun computes prices without writing them
	DryRun bool
}

// DefaultConfig returns the sequential configuration.
func DefaultConfig() Config {
	return Config{
		WriteConcurrency: 1,
		Prefetch:         false,
		PageTimeout:      30 * time.Second,
	}
}

// Repricer drives re-pricing runs.
type Repricer struct {
	fetcher PageFetcher
	updater PriceUpdater
	config  Config
	logger  zerolog.Logger
}

// New creates a Repricer.
func New(fetcher PageFetcher, updater PriceUpdater, cfg Config) (*Repricer, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if updater == nil && !cfg.DryRun {
		return nil, fmt.Errorf("updater is required unless dry run is enabled")
	}
	if cfg.WriteConcurrency < 0 {
		return nil, fmt.Errorf("write_concurrency must be >= 0 (got %d)", cfg.WriteConcurrency)
	}
	if cfg.WriteConcurrency == 0 {
		cfg.WriteConcurrency = 1
	}
	if cfg.WritesPerSecond < 0 {
		return nil, fmt.Errorf("writes_per_second must be >= 0 (got %v)", cfg.WritesPerSecond)
	}
	if cfg.PageTimeout < 0 {
		return nil, fmt.Errorf("page_timeout must be >= 0 (got %v)", cfg.PageTimeout)
	}

	return &Repricer{
		fetcher: fetcher,
		updater: updater,
		config:  cfg,
		logger:  logging.NewLogger(logging.ComponentRepricer),
	}, nil
}

// Config returns the effective configuration.
func (r *Repricer) Config() Config {
	return r.config
}

// run holds the mutable state of a single run.
type run struct {
	summary *RunSummary
	rates   pricing.RateRecord
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func (rn *run) transition(to State) {
	rn.logger.Debug().
		Str("from", string(rn.summary.State)).
		Str("to", string(to)).
		Int("page", rn.summary.Pages).
		Msg("Run state transition")
	rn.summary.State = to
}

// Run executes one re-pricing run with rates. A nil or invalid rate record
// returns a *ConfigurationError before any remote call. A page fetch failure
// returns the partial summary together with the fetch error.
func (r *Repricer) Run(ctx context.Context, rates *pricing.RateRecord) (*RunSummary, error) {
	return r.RunWithID(ctx, NewRunID(), rates)
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RunWithID is Run with a caller-chosen run id, for callers that report the
// id before the run completes.
func (r *Repricer) RunWithID(ctx context.Context, runID string, rates *pricing.RateRecord) (*RunSummary, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if rates == nil {
		r.logger.Error().Msg("No current rate record, run not started")
		runsTotal.WithLabelValues("configuration_error").Inc()
		return nil, &ConfigurationError{Reason: "rate record is required", Err: ErrNoCurrentRate}
	}
	if err := rates.Validate(); err != nil {
		r.logger.Error().Err(err).Msg("Invalid rate record, run not started")
		runsTotal.WithLabelValues("configuration_error").Inc()
		return nil, &ConfigurationError{Reason: "invalid rate record", Err: err}
	}

	rn := &run{
		summary: &RunSummary{
			RunID:     runID,
			State:     StateIdle,
			DryRun:    r.config.DryRun,
			Errors:    []ItemError{},
			StartedAt: time.Now().UTC(),
		},
		rates:  *rates,
		logger: logging.WithRun(r.logger, runID),
	}
	if r.config.WritesPerSecond > 0 && !r.config.DryRun {
		rn.limiter = rate.NewLimiter(rate.Limit(r.config.WritesPerSecond), 1)
	}

	activeRuns.Inc()
	defer activeRuns.Dec()

	rn.transition(StateRunning)
	rn.logger.Info().
		Str("rate_22k", rates.Rate22K.String()).
		Str("rate_18k", rates.Rate18K.String()).
		Bool("dry_run", r.config.DryRun).
		Int("write_concurrency", r.config.WriteConcurrency).
		Msg("Re-pricing run started")

	pageCfg := pagination.Config{Timeout: r.config.PageTimeout, Prefetch: r.config.Prefetch}

	rn.transition(StateFetching)
	cursor := ""
	for page, err := range pagination.Pages[catalog.Item](ctx, r.fetcher.FetchPage, pageCfg) {
		if err != nil {
			var transportErr *catalog.TransportError
			if !errors.As(err, &transportErr) {
				err = &catalog.TransportError{Op: "walk catalog", Cursor: cursor, Err: err}
			}
			return r.abort(rn, err)
		}
		cursor = page.NextCursor

		rn.transition(StateProcessing)
		r.processPage(ctx, rn, page)

		if page.HasNext {
			rn.transition(StateFetching)
		}
	}

	return r.finish(rn), nil
}

func (r *Repricer) abort(rn *run, err error) (*RunSummary, error) {
	s := rn.summary
	rn.transition(StateAborted)
	s.Complete = false
	s.Success = false
	s.AbortReason = err.Error()
	s.FinishedAt = time.Now().UTC()

	runsTotal.WithLabelValues(string(StateAborted)).Inc()
	runDuration.Observe(s.Duration().Seconds())

	event := rn.logger.Error().Err(err)
	var transportErr *catalog.TransportError
	if errors.As(err, &transportErr) {
		event = event.Str("cursor", transportErr.Cursor)
	}
	event.
		Int("pages", s.Pages).
		Int("updated", s.UpdatedCount).
		Int("failed", len(s.Errors)).
		Msg("Re-pricing run aborted")

	return s, err
}

func (r *Repricer) finish(rn *run) *RunSummary {
	s := rn.summary
	rn.transition(StateFinished)
	s.Complete = true
	s.Success = len(s.Errors) == 0
	s.FinishedAt = time.Now().UTC()

	runsTotal.WithLabelValues(string(StateFinished)).Inc()
	runDuration.Observe(s.Duration().Seconds())

	rn.logger.Info().
		Int("pages", s.Pages).
		Int("updated", s.UpdatedCount).
		Int("planned", s.PlannedCount).
		Int("skipped", s.SkippedCount).
		Int("failed", len(s.Errors)).
		Dur("duration", s.Duration()).
		Msg("Re-pricing run finished")

	return s
}
