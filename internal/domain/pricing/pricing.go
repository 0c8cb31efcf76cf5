// Package pricing derives cart totals from line items.
//
// The shipping model is a flat fee waived above a fixed threshold. Totals are
// always computed from the lines passed in; nothing is cached.
package pricing

import "github.com/shopspring/decimal"

var (
	// FreeShippingThreshold is the subtotal at or above which shipping is free.
	FreeShippingThreshold = decimal.NewFromInt(1999)
	// StandardShippingFee is charged for non-empty carts below the threshold.
	StandardShippingFee = decimal.NewFromInt(199)
)

// Line is the priced view of a single cart line.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total returns UnitPrice * Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Totals is the pricing breakdown of a cart.
type Totals struct {
	ItemCount    int
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Total        decimal.Decimal
}

// Calculate sums the lines and applies the shipping rule.
func Calculate(lines []Line) Totals {
	count := 0
	subtotal := decimal.Zero
	for _, l := range lines {
		count += l.Quantity
		subtotal = subtotal.Add(l.Total())
	}

	shipping := ShippingCost(len(lines), subtotal)

	return Totals{
		ItemCount:    count,
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Total:        subtotal.Add(shipping),
	}
}

// ShippingCost returns the shipping fee for a cart with the given number of
// lines and subtotal. An empty cart ships for free.
func ShippingCost(lines int, subtotal decimal.Decimal) decimal.Decimal {
	if lines == 0 {
		return decimal.Zero
	}
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		return decimal.Zero
	}
	return StandardShippingFee
}
