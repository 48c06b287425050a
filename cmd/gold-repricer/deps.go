package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Sternrassler/gold-repricer/pkg/catalog"
	"github.com/Sternrassler/gold-repricer/pkg/client"
	"github.com/Sternrassler/gold-repricer/pkg/logging"
	"github.com/Sternrassler/gold-repricer/pkg/pricing"
	"github.com/Sternrassler/gold-repricer/pkg/rates"
	"github.com/Sternrassler/gold-repricer/pkg/repricer"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
)

func setupLogging(c *cli.Context) {
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(c.String("log-level")),
		Pretty: c.Bool("log-pretty"),
		Output: os.Stderr,
	})
}

// openRedis returns nil when no Redis is configured. Plain host:port
// addresses are accepted as well as redis:// URLs.
func openRedis(ctx context.Context, raw string) (*redis.Client, error) {
	if raw == "" {
		return nil, nil
	}

	opts := &redis.Options{Addr: raw}
	if strings.Contains(raw, "://") {
		parsed, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// staticRates returns the rates given on the command line, or nil when neither is set.
func staticRates(c *cli.Context) (*pricing.RateRecord, error) {
	r22, r18 := c.String("rate-22k"), c.String("rate-18k")
	if r22 == "" && r18 == "" {
		return nil, nil
	}
	if r22 == "" || r18 == "" {
		return nil, fmt.Errorf("--rate-22k and --rate-18k must be set together")
	}
	record, err := pricing.NewRateRecord(r22, r18)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// openRateStore picks the static rates when given, the Postgres store otherwise.
func openRateStore(ctx context.Context, c *cli.Context) (rates.Store, func(), error) {
	record, err := staticRates(c)
	if err != nil {
		return nil, nil, err
	}
	if record != nil {
		return rates.NewStaticStore(record), func() {}, nil
	}

	dsn := c.String("database-url")
	if dsn == "" {
		return nil, nil, fmt.Errorf("no rate source: set --database-url or --rate-22k and --rate-18k")
	}
	store, err := rates.OpenPostgres(ctx, rates.PostgresConfig{DSN: dsn})
	if err != nil {
		return nil, nil, fmt.Errorf("open rate store: %w", err)
	}
	return store, store.Close, nil
}

func newAdminClient(c *cli.Context, rdb *redis.Client) (*client.Client, error) {
	cfg := client.DefaultConfig(c.String("shop"), c.String("access-token"))
	cfg.APIVersion = c.String("api-version")
	cfg.Endpoint = c.String("endpoint")
	cfg.UserAgent = "gold-repricer/" + version
	cfg.Redis = rdb
	return client.New(cfg)
}

func repricerConfig(c *cli.Context, dryRun bool) repricer.Config {
	return repricer.Config{
		WriteConcurrency: c.Int("write-concurrency"),
		Prefetch:         c.Bool("prefetch"),
		PageTimeout:      c.Duration("page-timeout"),
		WritesPerSecond:  c.Float64("writes-per-second"),
		DryRun:           dryRun,
	}
}

func newRepricer(api *client.Client, cfg repricer.Config) (*repricer.Repricer, error) {
	return repricer.New(catalog.NewFetcher(api), catalog.NewUpdater(api), cfg)
}
