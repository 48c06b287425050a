package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Sternrassler/gold-repricer/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Ack confirms a committed price.
type Ack struct {
	ItemID    string          `json:"item_id"`
	VariantID string          `json:"variant_id"`
	Price     decimal.Decimal `json:"price"`
}

type updateData struct {
	ProductVariantsBulkUpdate *struct {
		ProductVariants []struct {
			ID    string `json:"id"`
			Price string `json:"price"`
		} `json:"productVariants"`
		UserErrors []UserError `json:"userErrors"`
	} `json:"productVariantsBulkUpdate"`
}

// Updater writes prices to product variants, one call per item.
type Updater struct {
	api    Executor
	logger zerolog.Logger
}

// NewUpdater creates an Updater using api.
func NewUpdater(api Executor) *Updater {
	return &Updater{
		api:    api,
		logger: logging.NewLogger(logging.ComponentCatalog),
	}
}

// UpdatePrice sets the price of variantID on product itemID. Every failure
// is an *UpdateError.
func (u *Updater) UpdatePrice(ctx context.Context, itemID, variantID string, price int64) (Ack, error) {
	requested := strconv.FormatInt(price, 10)
	variables := map[string]any{
		"productId": itemID,
		"variants": []map[string]any{
			{"id": variantID, "price": requested},
		},
	}

	var data updateData
	if err := u.api.Do(ctx, updatePriceMutation, variables, &data); err != nil {
		return Ack{}, &UpdateError{ItemID: itemID, VariantID: variantID, Err: err}
	}

	result := data.ProductVariantsBulkUpdate
	if result == nil {
		return Ack{}, &UpdateError{
			ItemID:    itemID,
			VariantID: variantID,
			Err:       fmt.Errorf("%w: missing productVariantsBulkUpdate", ErrMalformedResponse),
		}
	}
	if len(result.UserErrors) > 0 {
		return Ack{}, &UpdateError{ItemID: itemID, VariantID: variantID, UserErrors: result.UserErrors}
	}

	ack := Ack{ItemID: itemID, VariantID: variantID, Price: decimal.NewFromInt(price)}
	for _, v := range result.ProductVariants {
		if v.ID != variantID {
			continue
		}
		if committed, err := decimal.NewFromString(v.Price); err == nil {
			ack.Price = committed
		}
	}

	u.logger.Debug().
		Str("item_id", itemID).
		Str("variant_id", variantID).
		Str("price", ack.Price.String()).
		Msg("Variant price committed")

	return ack, nil
}
