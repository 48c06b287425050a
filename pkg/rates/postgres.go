package rates

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/gold-repricer/pkg/logging"
	"github.com/Sternrassler/gold-repricer/pkg/pricing"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var rateQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rate_store_queries_total",
	Help: "Rate store queries by operation and status",
}, []string{"operation", "status"})

// Schema creates the single-row rate table.
const Schema = `CREATE TABLE IF NOT EXISTS save_rates (
	id            integer PRIMARY KEY,
	gold_rate_22k numeric(14, 2) NOT NULL,
	gold_rate_18k numeric(14, 2),
	updated_at    timestamptz NOT NULL DEFAULT now()
)`

// recordID is the row the settings workflow upserts.
const recordID = 1

const currentQuery = `SELECT gold_rate_22k::text, gold_rate_18k::text
FROM save_rates
ORDER BY updated_at DESC, id DESC
LIMIT 1`

const upsertQuery = `INSERT INTO save_rates (id, gold_rate_22k, gold_rate_18k, updated_at)
VALUES ($1, $2::numeric, $3::numeric, now())
ON CONFLICT (id) DO UPDATE
SET gold_rate_22k = EXCLUDED.gold_rate_22k,
    gold_rate_18k = EXCLUDED.gold_rate_18k,
    updated_at    = EXCLUDED.updated_at`

// PostgresConfig holds the connection settings.
type PostgresConfig struct {
	DSN      string
	MaxConns int

	// SimpleProtocol disables prepared statements (required behind PgBouncer
	// in transaction mode)
	SimpleProtocol bool
}

// PostgresStore reads the rate record from Postgres.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// OpenPostgres connects to Postgres and verifies the connection.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 2
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	if cfg.SimpleProtocol {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return NewPostgresStore(pool), nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: logging.NewLogger(logging.ComponentRates),
	}
}

// EnsureSchema creates the rate table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create save_rates: %w", err)
	}
	return nil
}

// Current implements Store.
func (s *PostgresStore) Current(ctx context.Context) (*pricing.RateRecord, error) {
	var rate22K string
	var rate18K *string

	err := s.pool.QueryRow(ctx, currentQuery).Scan(&rate22K, &rate18K)
	if errors.Is(err, pgx.ErrNoRows) {
		rateQueriesTotal.WithLabelValues("current", "empty").Inc()
		s.logger.Warn().Msg("No rate record stored")
		return nil, nil
	}
	if err != nil {
		rateQueriesTotal.WithLabelValues("current", "error").Inc()
		return nil, fmt.Errorf("query current rate: %w", err)
	}
	if rate18K == nil {
		rateQueriesTotal.WithLabelValues("current", "error").Inc()
		return nil, fmt.Errorf("%w: 18K rate not set", ErrIncompleteRecord)
	}

	record, err := pricing.NewRateRecord(rate22K, *rate18K)
	if err != nil {
		rateQueriesTotal.WithLabelValues("current", "error").Inc()
		return nil, fmt.Errorf("stored rate: %w", err)
	}

	rateQueriesTotal.WithLabelValues("current", "ok").Inc()
	return &record, nil
}

// Save upserts record as the current rate.
func (s *PostgresStore) Save(ctx context.Context, record pricing.RateRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, upsertQuery, recordID, record.Rate22K.String(), record.Rate18K.String())
	if err != nil {
		rateQueriesTotal.WithLabelValues("save", "error").Inc()
		return fmt.Errorf("upsert rate: %w", err)
	}

	rateQueriesTotal.WithLabelValues("save", "ok").Inc()
	s.logger.Info().
		Str("rate_22k", record.Rate22K.String()).
		Str("rate_18k", record.Rate18K.String()).
		Msg("Rate record saved")
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
