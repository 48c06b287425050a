package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sternrassler/gold-repricer/pkg/repricer"
	"github.com/Sternrassler/gold-repricer/pkg/runstore"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Re-price the catalog once and print the run summary",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Compute and log prices without writing them",
			},
		},
		Action: runRun,
	}
}

func runRun(c *cli.Context) error {
	ctx := c.Context

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

	r, err := newRepricer(api, repricerConfig(c, c.Bool("dry-run")))
	if err != nil {
		return err
	}

	record, err := rateStore.Current(ctx)
	if err != nil {
		return fmt.Errorf("read current rate: %w", err)
	}

	summary, runErr := r.Run(ctx, record)

	var cfgErr *repricer.ConfigurationError
	if errors.As(runErr, &cfgErr) {
		return cli.Exit(cfgErr.Error(), 1)
	}

	if rdb != nil && summary != nil {
		if err := runstore.NewManager(rdb, runstore.DefaultTTL).Save(ctx, summary); err != nil {
			log.Warn().Err(err).Str("run_id", summary.RunID).Msg("Failed to store run summary")
		}
	}

	if summary != nil {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if runErr != nil {
		return cli.Exit(fmt.Sprintf("run aborted: %v", runErr), 1)
	}
	if !summary.Success {
		return cli.Exit(fmt.Sprintf("%d items failed to update", len(summary.Errors)), 2)
	}
	return nil
}
