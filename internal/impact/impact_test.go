package impact

import (
	"testing"

	"github.com/verdana-market/verdana-backend/pkg/db/models"
)

var testConfig = Config{
	TaxRateBps:        800,
	FreeShippingCents: 5000,
	FlatShippingCents: 599,
}

func TestComputeLineImpactScoresAndQuantity(t *testing.T) {
	product := models.Product{
		EcoScore:              620,
		CarbonSavedPerUnit:    1200,
		WaterSavedPerUnit:     3400,
		WastePreventedPerUnit: 80,
	}

	got := ComputeLineImpact(product, 2)
	if got.ImpactPoints != 124 {
		t.Fatalf("expected 124 impact points, got %d", got.ImpactPoints)
	}
	if got.CarbonSaved != 2400 || got.WaterSaved != 6800 || got.WastePrevented != 160 {
		t.Fatalf("unexpected physical totals: %+v", got)
	}
}

func TestComputeLineImpactDegradesToZero(t *testing.T) {
	// Products without sourced insights carry zero per-unit values.
	got := ComputeLineImpact(models.Product{EcoScore: 55}, 3)
	if got.CarbonSaved != 0 || got.WaterSaved != 0 || got.WastePrevented != 0 {
		t.Fatalf("expected zero physical impact, got %+v", got)
	}
	if got.ImpactPoints != 15 {
		t.Fatalf("expected floor(55/10)*3 = 15 points, got %d", got.ImpactPoints)
	}

	if got := ComputeLineImpact(models.Product{EcoScore: -10}, 2); got.ImpactPoints != 0 {
		t.Fatalf("negative score should classify as zero, got %d", got.ImpactPoints)
	}
	if got := ComputeLineImpact(models.Product{EcoScore: 900}, 0); got != (Totals{}) {
		t.Fatalf("zero quantity should yield zero totals, got %+v", got)
	}
}

func TestSumTotalsMatchesLineSum(t *testing.T) {
	lines := []Totals{
		{CarbonSaved: 10, WaterSaved: 20, WastePrevented: 3, ImpactPoints: 62},
		{CarbonSaved: 5, WaterSaved: 1, WastePrevented: 0, ImpactPoints: 62},
	}
	sum := SumTotals(lines)
	if sum.ImpactPoints != 124 {
		t.Fatalf("expected 124 points, got %d", sum.ImpactPoints)
	}
	if sum.CarbonSaved != 15 || sum.WaterSaved != 21 || sum.WastePrevented != 3 {
		t.Fatalf("unexpected sum: %+v", sum)
	}
}

func TestComputeOrderTotalsAboveFreeShipping(t *testing.T) {
	// eco-score 620 product, quantity 2, no overrides: the reference case.
	lines := []Line{{Quantity: 2, UnitPriceCents: 2999}}
	summary := ComputeOrderTotals(lines, testConfig, 0)

	if summary.SubtotalCents != 5998 {
		t.Fatalf("expected subtotal 5998, got %d", summary.SubtotalCents)
	}
	if summary.TaxCents != 480 {
		t.Fatalf("expected tax 480, got %d", summary.TaxCents)
	}
	if summary.ShippingCents != 0 {
		t.Fatalf("expected free shipping, got %d", summary.ShippingCents)
	}
	if summary.TotalCents != summary.SubtotalCents+summary.TaxCents+summary.ShippingCents-summary.DiscountCents {
		t.Fatalf("total identity violated: %+v", summary)
	}
}

func TestComputeOrderTotalsFlatShippingAndDiscount(t *testing.T) {
	lines := []Line{
		{Quantity: 1, UnitPriceCents: 1250},
		{Quantity: 2, UnitPriceCents: 500},
	}
	summary := ComputeOrderTotals(lines, testConfig, 100)

	if summary.SubtotalCents != 2250 {
		t.Fatalf("expected subtotal 2250, got %d", summary.SubtotalCents)
	}
	if summary.TaxCents != 180 {
		t.Fatalf("expected tax 180, got %d", summary.TaxCents)
	}
	if summary.ShippingCents != 599 {
		t.Fatalf("expected flat shipping 599, got %d", summary.ShippingCents)
	}
	if summary.DiscountCents != 100 {
		t.Fatalf("expected discount 100, got %d", summary.DiscountCents)
	}
	if summary.TotalCents != 2250+180+599-100 {
		t.Fatalf("unexpected total %d", summary.TotalCents)
	}
}

func TestComputeOrderTotalsTaxRounding(t *testing.T) {
	// 131 * 8% = 10.48 rounds to 10; 119 * 8% = 9.52 rounds to 10.
	if got := ComputeOrderTotals([]Line{{Quantity: 1, UnitPriceCents: 131}}, testConfig, 0).TaxCents; got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got := ComputeOrderTotals([]Line{{Quantity: 1, UnitPriceCents: 119}}, testConfig, 0).TaxCents; got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
}
