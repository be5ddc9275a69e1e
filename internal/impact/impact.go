// Package impact holds the pure settlement math: per-line environmental
// impact and order money totals. Everything computes in integer minor units;
// decimal conversion happens once at the API boundary.
package impact

import (
	"github.com/shopspring/decimal"

	"github.com/verdana-market/verdana-backend/pkg/db/models"
)

const bpsDenominator = 10000

// Totals is the environmental aggregate of a line or an order. Carbon and
// waste are grams, water is milliliters.
type Totals struct {
	CarbonSaved    int64
	WaterSaved     int64
	WastePrevented int64
	ImpactPoints   int64
}

// Add accumulates other into the receiver's copy and returns it.
func (t Totals) Add(other Totals) Totals {
	t.CarbonSaved += other.CarbonSaved
	t.WaterSaved += other.WaterSaved
	t.WastePrevented += other.WastePrevented
	t.ImpactPoints += other.ImpactPoints
	return t
}

// Line is one priced order line feeding the totals computation.
type Line struct {
	Quantity       int
	UnitPriceCents int64
}

// Summary is the money breakdown of one order.
// Total = Subtotal + Tax + Shipping - Discount always holds.
type Summary struct {
	SubtotalCents int64
	TaxCents      int64
	ShippingCents int64
	DiscountCents int64
	TotalCents    int64
}

// Config carries the fixed settlement rates.
type Config struct {
	TaxRateBps        int
	FreeShippingCents int64
	FlatShippingCents int64
}

// ComputeLineImpact derives the impact of purchasing qty units of the product.
// Points are floor(ecoScore/10) per unit; the physical quantities scale the
// product's per-unit snapshot. Missing insight data is stored as zeros on the
// product, so absent data degrades to zero impact rather than an error.
func ComputeLineImpact(product models.Product, qty int) Totals {
	if qty <= 0 {
		return Totals{}
	}
	score := product.EcoScore
	if score < 0 {
		score = 0
	}
	q := int64(qty)
	return Totals{
		CarbonSaved:    product.CarbonSavedPerUnit * q,
		WaterSaved:     product.WaterSavedPerUnit * q,
		WastePrevented: product.WastePreventedPerUnit * q,
		ImpactPoints:   int64(score/10) * q,
	}
}

// SumTotals folds per-line totals into one aggregate.
func SumTotals(lines []Totals) Totals {
	var sum Totals
	for _, line := range lines {
		sum = sum.Add(line)
	}
	return sum
}

// ComputeOrderTotals derives the money summary for the given lines. Tax is
// applied to the subtotal at the configured rate; shipping is free above the
// threshold and a flat fee below it; the discount defaults to 0.
func ComputeOrderTotals(lines []Line, cfg Config, discountCents int64) Summary {
	var subtotal int64
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		subtotal += line.UnitPriceCents * int64(line.Quantity)
	}
	if discountCents < 0 {
		discountCents = 0
	}

	tax := decimal.NewFromInt(subtotal).
		Mul(decimal.NewFromInt(int64(cfg.TaxRateBps))).
		Div(decimal.NewFromInt(bpsDenominator)).
		Round(0).
		IntPart()

	var shipping int64
	if subtotal > 0 && subtotal <= cfg.FreeShippingCents {
		shipping = cfg.FlatShippingCents
	}

	return Summary{
		SubtotalCents: subtotal,
		TaxCents:      tax,
		ShippingCents: shipping,
		DiscountCents: discountCents,
		TotalCents:    subtotal + tax + shipping - discountCents,
	}
}
