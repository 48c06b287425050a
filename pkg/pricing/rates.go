// Package pricing derives retail prices for gold jewelry from item metadata
// and the current per-gram metal rates.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNegativeRate is returned by Validate when a tier rate is below zero.
var ErrNegativeRate = errors.New("rate must not be negative")

// RateRecord holds the current per-gram gold rate for each purity tier.
type RateRecord struct {
	// Rate22K is applied to items tagged with the 22K marker.
	Rate22K decimal.Decimal `json:"rate_22k"`

	// Rate18K is applied to items tagged with the 18K marker.
	Rate18K decimal.Decimal `json:"rate_18k"`
}

// NewRateRecord parses both tier rates from their string form.
func NewRateRecord(rate22K, rate18K string) (RateRecord, error) {
	r22, err := decimal.NewFromString(rate22K)
	if err != nil {
		return RateRecord{}, fmt.Errorf("parse 22K rate %q: %w", rate22K, err)
	}
	r18, err := decimal.NewFromString(rate18K)
	if err != nil {
		return RateRecord{}, fmt.Errorf("parse 18K rate %q: %w", rate18K, err)
	}

	record := RateRecord{Rate22K: r22, Rate18K: r18}
	if err := record.Validate(); err != nil {
		return RateRecord{}, err
	}
	return record, nil
}

// Validate checks that both tier rates are usable.
func (r RateRecord) Validate() error {
	if r.Rate22K.IsNegative() {
		return fmt.Errorf("22K: %w (got %s)", ErrNegativeRate, r.Rate22K)
	}
	if r.Rate18K.IsNegative() {
		return fmt.Errorf("18K: %w (got %s)", ErrNegativeRate, r.Rate18K)
	}
	return nil
}

// RateFor returns the rate applied to the given tier.
// The second result is false for TierUnknown.
func (r RateRecord) RateFor(tier Tier) (decimal.Decimal, bool) {
	switch tier {
	case Tier22K:
		return r.Rate22K, true
	case Tier18K:
		return r.Rate18K, true
	default:
		return decimal.Zero, false
	}
}
