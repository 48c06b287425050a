package repricer

import (
	"context"
	"errors"

	"github.com/Sternrassler/gold-repricer/pkg/catalog"
	"github.com/Sternrassler/gold-repricer/pkg/pagination"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type result string

const (
	resultUpdated result = "updated"
	resultSkipped result = "skipped"
	resultPlanned result = "planned"
	resultFailed  result = "failed"
)

// outcome is the result of processing one item.
type outcome struct {
	result result
	price  int64
	err    *ItemError
}

// processPage prices and writes every item of page. Items are independent;
// with WriteConcurrency > 1 they are written concurrently and the outcomes are
// folded in page order afterwards.
func (r *Repricer) processPage(ctx context.Context, rn *run, page pagination.Page[catalog.Item]) {
	outcomes := make([]outcome, len(page.Items))

	var g errgroup.Group
	g.SetLimit(r.config.WriteConcurrency)
	for i, item := range page.Items {
		g.Go(func() error {
			outcomes[i] = r.processItem(ctx, rn, item)
			return nil
		})
	}
	g.Wait()

	s := rn.summary
	s.Pages++
	pagesTotal.Inc()

	var updated, failed int
	for _, o := range outcomes {
		itemsTotal.WithLabelValues(string(o.result)).Inc()
		switch o.result {
		case resultUpdated:
			s.UpdatedCount++
			updated++
		case resultSkipped:
			s.SkippedCount++
		case resultPlanned:
			s.PlannedCount++
		case resultFailed:
			s.Errors = append(s.Errors, *o.err)
			failed++
		}
	}

	rn.logger.Info().
		Int("page", page.Number).
		Int("items", len(page.Items)).
		Int("updated", updated).
		Int("failed", failed).
		Bool("has_next", page.HasNext).
		Msg("Processed catalog page")
}

// processItem never returns an error; write failures become an ItemError.
func (r *Repricer) processItem(ctx context.Context, rn *run, item catalog.Item) outcome {
	logger := rn.logger.With().Str("item_id", item.ID).Logger()

	if !item.HasVariant() {
		logger.Debug().Msg("No variant found, item skipped")
		return outcome{result: resultSkipped}
	}

	breakdown, ok := item.Price(rn.rates)
	if !ok {
		logger.Debug().Strs("tags", item.Tags).Msg("No purity tag, item skipped")
		return outcome{result: resultSkipped}
	}
	if err := breakdown.Validate(); err != nil {
		logger.Warn().Err(err).Msg("Computed price rejected")
		return itemFailed(item, err.Error())
	}

	logger = logger.With().Str("variant_id", item.VariantID).Int64("price", breakdown.Final).Logger()
	logger.Debug().
		Str("tier", string(breakdown.Tier)).
		Str("base", breakdown.Base.String()).
		Str("making", breakdown.MakingAmount.String()).
		Str("stone", breakdown.StonePrice.String()).
		Str("gst", breakdown.GSTAmount.String()).
		Msg("Price computed")

	if r.config.DryRun {
		logger.Info().Msg("Dry run, price not written")
		return outcome{result: resultPlanned, price: breakdown.Final}
	}

	if rn.limiter != nil {
		if err := rn.limiter.Wait(ctx); err != nil {
			return r.failed(logger, item, err)
		}
	}

	ack, err := r.updater.UpdatePrice(ctx, item.ID, item.VariantID, breakdown.Final)
	if err != nil {
		return r.failed(logger, item, err)
	}

	logger.Info().Str("committed", ack.Price.String()).Msg("Variant price updated")
	return outcome{result: resultUpdated, price: breakdown.Final}
}

func (r *Repricer) failed(logger zerolog.Logger, item catalog.Item, err error) outcome {
	message := err.Error()
	var updateErr *catalog.UpdateError
	if errors.As(err, &updateErr) {
		message = updateErr.Reason()
	}

	logger.Warn().Err(err).Msg("Variant price update failed")
	return itemFailed(item, message)
}

func itemFailed(item catalog.Item, message string) outcome {
	return outcome{
		result: resultFailed,
		err: &ItemError{
			ItemID:    item.ID,
			VariantID: item.VariantID,
			Message:   message,
		},
	}
}
