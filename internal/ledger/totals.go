// Package ledger holds the pure arithmetic shared by checkout, purchase entry,
// returns and stock opname. Nothing here touches storage.
package ledger

import (
	"github.com/shopspring/decimal"

	"kasirledger/backend/internal/domain"
)

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
	Paid     decimal.Decimal `json:"paid"`
	Change   decimal.Decimal `json:"change"`
}

// LineSubtotal is qty*unitPrice minus the line discount. Malformed lines are
// not clamped; callers validate before aggregating.
func LineSubtotal(item domain.LineItem) decimal.Decimal {
	return item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Qty))).Sub(item.Discount)
}

// ComputeTotals sums line subtotals and applies the header discount. The total
// never goes below zero even when the discount exceeds the subtotal.
func ComputeTotals(items []domain.LineItem, headerDiscount decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(LineSubtotal(item))
	}

	total := subtotal.Sub(headerDiscount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal,
		Discount: headerDiscount,
		Total:    total,
		Paid:     decimal.Zero,
		Change:   decimal.Zero,
	}
}

// WithPayment records the amount tendered and the change due, floored at zero.
func (t Totals) WithPayment(paid decimal.Decimal) Totals {
	t.Paid = paid
	t.Change = paid.Sub(t.Total)
	if t.Change.IsNegative() {
		t.Change = decimal.Zero
	}
	return t
}

func (t Totals) Covered() bool {
	return t.Paid.GreaterThanOrEqual(t.Total)
}

// NetUnitPrice is what one unit of a line actually cost after its line
// discount, truncated to two decimals so qty*net never exceeds the line
// subtotal.
func NetUnitPrice(qty int, subtotal decimal.Decimal) decimal.Decimal {
	if qty < 1 || !subtotal.IsPositive() {
		return decimal.Zero
	}
	return subtotal.Div(decimal.NewFromInt(int64(qty))).Truncate(2)
}
