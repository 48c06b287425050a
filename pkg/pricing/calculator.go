package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier is the gold purity classification of an item.
type Tier string

const (
	TierUnknown Tier = ""
	Tier22K     Tier = "22K"
	Tier18K     Tier = "18K"
)

// Catalog tag markers. Matching is case-insensitive, so Gold_22K and
// gold_22k select the same tier.
const (
	Tag22K = "Gold_22K"
	Tag18K = "Gold_18K"
)

// Metafield keys carrying the pricing inputs. Matched exactly.
const (
	KeyGoldWeight    = "gold_weight"
	KeyMakingCharges = "making_charges"
	KeyStonePrice    = "stone_price"
)

// GSTPercent is the fixed tax rate added on top of the pre-tax price.
var GSTPercent = decimal.NewFromInt(3)

// MaxPrice is the largest price the calculator produces. Totals above it
// are rejected rather than written.
var MaxPrice = decimal.NewFromInt(1_000_000_000_000_000)

// ErrPriceOutOfRange is returned by Breakdown.Validate when the total
// exceeds MaxPrice.
var ErrPriceOutOfRange = errors.New("price out of range")

// maxAmountLen bounds the length of a metafield amount.
const maxAmountLen = 32

var hundred = decimal.NewFromInt(100)

// Input is the normalized pricing data of one catalog item.
type Input struct {
	Tier            Tier
	Weight          decimal.Decimal
	MakingChargePct decimal.Decimal
	StonePrice      decimal.Decimal
}

// Breakdown is the full result of a price calculation.
type Breakdown struct {
	Tier         Tier            `json:"tier"`
	Rate         decimal.Decimal `json:"rate"`
	Base         decimal.Decimal `json:"base"`
	MakingAmount decimal.Decimal `json:"making_amount"`
	StonePrice   decimal.Decimal `json:"stone_price"`
	GSTAmount    decimal.Decimal `json:"gst_amount"`
	Total        decimal.Decimal `json:"total"`

	// Final is Total rounded to a whole currency unit, ties rounding up.
	// It is zero when Total exceeds MaxPrice.
	Final int64 `json:"final"`
}

// Validate reports whether the breakdown carries a writable price.
func (b Breakdown) Validate() error {
	if b.Total.GreaterThan(MaxPrice) {
		return fmt.Errorf("%w: total %s exceeds %s", ErrPriceOutOfRange, b.Total.Round(0), MaxPrice)
	}
	return nil
}

// TierFromTags resolves the purity tier from an item's tags.
// The 22K marker wins when both markers are present.
func TierFromTags(tags []string) Tier {
	has18K := false
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if strings.EqualFold(tag, Tag22K) {
			return Tier22K
		}
		if strings.EqualFold(tag, Tag18K) {
			has18K = true
		}
	}
	if has18K {
		return Tier18K
	}
	return TierUnknown
}

// ParseInput builds the pricing input from tags and raw metafield values.
// Missing, empty, non-numeric or negative values become zero, as do values
// in exponent notation or longer than 32 characters. This never fails.
func ParseInput(tags []string, metafields map[string]string) Input {
	return Input{
		Tier:            TierFromTags(tags),
		Weight:          parseAmount(metafields[KeyGoldWeight]),
		MakingChargePct: parseAmount(metafields[KeyMakingCharges]),
		StonePrice:      parseAmount(metafields[KeyStonePrice]),
	}
}

func parseAmount(raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" || !plainDecimal(raw) {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// plainDecimal accepts an optional sign, digits and at most one decimal point.
func plainDecimal(s string) bool {
	if len(s) > maxAmountLen {
		return false
	}
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	digits, dot := 0, false
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits > 0
}

// Calculate applies the pricing formula to input using rates.
// The second result is false when the input has no known purity tier.
func Calculate(input Input, rates RateRecord) (Breakdown, bool) {
	rate, ok := rates.RateFor(input.Tier)
	if !ok {
		return Breakdown{}, false
	}

	base := rate.Mul(input.Weight)
	making := input.StonePrice.Add(base).Mul(input.MakingChargePct).Div(hundred)
	gst := input.StonePrice.Add(making).Add(base).Mul(GSTPercent).Div(hundred)
	total := base.Add(making).Add(input.StonePrice).Add(gst)

	b := Breakdown{
		Tier:         input.Tier,
		Rate:         rate,
		Base:         base,
		MakingAmount: making,
		StonePrice:   input.StonePrice,
		GSTAmount:    gst,
		Total:        total,
	}
	if b.Validate() == nil {
		b.Final = roundHalfUp(total)
	}
	return b, true
}

// PriceFor is the one-call form of ParseInput followed by Calculate.
// Callers writing the price must check Breakdown.Validate.
func PriceFor(tags []string, metafields map[string]string, rates RateRecord) (Breakdown, bool) {
	return Calculate(ParseInput(tags, metafields), rates)
}

// Totals are never negative, so rounding half away from zero is rounding half up.
func roundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
