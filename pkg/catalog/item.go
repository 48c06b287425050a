package catalog

import (
	"context"

	"github.com/Sternrassler/gold-repricer/pkg/pricing"
)

// Executor runs one GraphQL operation and decodes its data into out.
type Executor interface {
	Do(ctx context.Context, query string, variables map[string]any, out any) error
}

// Item is one catalog product as seen by the repricer.
type Item struct {
	ID         string            `json:"id"`
	Tags       []string          `json:"tags"`
	VariantID  string            `json:"variant_id,omitempty"` // empty when the product has no variant
	Metafields map[string]string `json:"metafields"`
}

// HasVariant reports whether the item has a price target.
func (i Item) HasVariant() bool {
	return i.VariantID != ""
}

// Price computes the item's price for rates. ok is false when the item
// carries no purity tag.
func (i Item) Price(rates pricing.RateRecord) (pricing.Breakdown, bool) {
	return pricing.PriceFor(i.Tags, i.Metafields, rates)
}
