package repricer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repricer_runs_total",
		Help: "Total re-pricing runs by terminal state",
	}, []string{"state"})

	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repricer_items_total",
		Help: "Catalog items processed by result (updated, skipped, planned, failed)",
	}, []string{"result"})

	pagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "repricer_pages_total",
		Help: "Catalog pages processed",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "repricer_run_duration_seconds",
		Help:    "Duration of re-pricing runs in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})

	activeRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "repricer_active_runs",
		Help: "Number of re-pricing runs currently in progress",
	})
)
