package main

import (
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/gold-repricer/pkg/pricing"
	"github.com/Sternrassler/gold-repricer/pkg/rates"
	"github.com/urfave/cli/v2"
)

func ratesCommand() *cli.Command {
	return &cli.Command{
		Name:  "rates",
		Usage: "Inspect or set the current metal rates",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the current rate record",
				Action: runRatesShow,
			},
			{
				Name:  "set",
				Usage: "Save a new rate record to the rate store",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "rate-22k", Usage: "22K rate per gram", EnvVars: []string{"GOLD_RATE_22K"}},
					&cli.StringFlag{Name: "rate-18k", Usage: "18K rate per gram", EnvVars: []string{"GOLD_RATE_18K"}},
				},
				Action: runRatesSet,
			},
		},
	}
}

func runRatesShow(c *cli.Context) error {
	store, closeStore, err := openRateStore(c.Context, c)
	if err != nil {
		return err
	}
	defer closeStore()

	record, err := store.Current(c.Context)
	if err != nil {
		return fmt.Errorf("read current rate: %w", err)
	}
	if record == nil {
		return cli.Exit("no current rate record", 1)
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(record)
}

func runRatesSet(c *cli.Context) error {
	r22, r18 := lineageString(c, "rate-22k"), lineageString(c, "rate-18k")
	if r22 == "" || r18 == "" {
		return cli.Exit("rates set needs --rate-22k and --rate-18k (or GOLD_RATE_22K and GOLD_RATE_18K)", 1)
	}
	record, err := pricing.NewRateRecord(r22, r18)
	if err != nil {
		return err
	}

	dsn := c.String("database-url")
	if dsn == "" {
		return fmt.Errorf("--database-url is required to save rates")
	}

	store, err := rates.OpenPostgres(c.Context, rates.PostgresConfig{DSN: dsn})
	if err != nil {
		return fmt.Errorf("open rate store: %w", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(c.Context); err != nil {
		return err
	}
	if err := store.Save(c.Context, record); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Saved rates: 22K=%s 18K=%s\n", record.Rate22K, record.Rate18K)
	return nil
}

// lineageString returns the first non-empty value of a flag, looking at the
// command's own flags before the global ones.
func lineageString(c *cli.Context, name string) string {
	for _, ctx := range c.Lineage() {
		if v := ctx.String(name); v != "" {
			return v
		}
	}
	return ""
}
