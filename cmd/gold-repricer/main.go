// gold-repricer recalculates the retail price of every gold item in a Shopify
// catalog from the current metal rates and writes it back to the store.
//
// Usage:
//
//	gold-repricer run [--dry-run]
//	gold-repricer serve --port 8080
//	gold-repricer rates show
//	gold-repricer rates set --rate-22k 6000 --rate-18k 4900
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Sternrassler/gold-repricer/pkg/client"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "gold-repricer",
		Usage:   "Re-price a gold jewelry catalog from the current metal rates",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"REPRICER_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "log-pretty",
				Usage:   "Human-readable console logs instead of JSON",
				EnvVars: []string{"REPRICER_LOG_PRETTY"},
			},
			&cli.StringFlag{
				Name:    "shop",
				Usage:   "Shop domain, e.g. gold-house.myshopify.com",
				EnvVars: []string{"SHOPIFY_SHOP"},
			},
			&cli.StringFlag{
				Name:    "access-token",
				Usage:   "Admin API access token",
				EnvVars: []string{"SHOPIFY_ACCESS_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "api-version",
				Value:   client.DefaultAPIVersion,
				Usage:   "Admin API version",
				EnvVars: []string{"SHOPIFY_API_VERSION"},
			},
			&cli.StringFlag{
				Name:    "endpoint",
				Usage:   "GraphQL endpoint override (proxies, tests)",
				EnvVars: []string{"SHOPIFY_GRAPHQL_ENDPOINT"},
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis address or URL for shared throttle state and run history",
				EnvVars: []string{"REDIS_URL"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Postgres DSN of the rate store",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "rate-22k",
				Usage:   "22K rate; with --rate-18k bypasses the rate store",
				EnvVars: []string{"GOLD_RATE_22K"},
			},
			&cli.StringFlag{
				Name:    "rate-18k",
				Usage:   "18K rate; with --rate-22k bypasses the rate store",
				EnvVars: []string{"GOLD_RATE_18K"},
			},
			&cli.IntFlag{
				Name:    "write-concurrency",
				Value:   1,
				Usage:   "Price writes in flight per page",
				EnvVars: []string{"REPRICER_WRITE_CONCURRENCY"},
			},
			&cli.Float64Flag{
				Name:    "writes-per-second",
				Usage:   "Pace price writes (0 = unpaced)",
				EnvVars: []string{"REPRICER_WRITES_PER_SECOND"},
			},
			&cli.BoolFlag{
				Name:    "prefetch",
				Usage:   "Fetch the next page while the current page is written",
				EnvVars: []string{"REPRICER_PREFETCH"},
			},
			&cli.DurationFlag{
				Name:    "page-timeout",
				Value:   30 * time.Second,
				Usage:   "Timeout per catalog page fetch",
				EnvVars: []string{"REPRICER_PAGE_TIMEOUT"},
			},
		},

		Before: func(c *cli.Context) error {
			setupLogging(c)
			return nil
		},

		Commands: []*cli.Command{
			runCommand(),
			serveCommand(),
			ratesCommand(),
		},
	}
}
