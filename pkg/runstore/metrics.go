package runstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreHits tracks successful summary lookups
	StoreHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "runstore_hits_total",
			Help: "Total number of run summary lookups that found a run",
		},
	)

	// StoreMisses tracks lookups of unknown or expired runs
	StoreMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "runstore_misses_total",
			Help: "Total number of run summary lookups for unknown or expired runs",
		},
	)

	// StoreErrors tracks store operation errors
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runstore_errors_total",
			Help: "Total number of run store operation errors",
		},
		[]string{"operation"}, // "save", "get", "latest", "recent"
	)
)
