package order

import (
	"github.com/shopspring/decimal"
)

// Pricing flat-rate checkout pricing
type Pricing struct {
	TaxRate     decimal.Decimal
	ShippingFee decimal.Decimal
}

// Quote monetary totals of one order
type Quote struct {
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	ShippingFee decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
}

// Quote prices an order. Tax is charged on the subtotal and rounded to cents;
// the discount never exceeds the subtotal.
func (p Pricing) Quote(subtotal, discount decimal.Decimal) Quote {
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	tax := subtotal.Mul(p.TaxRate).Round(2)
	return Quote{
		Subtotal:    subtotal,
		Tax:         tax,
		ShippingFee: p.ShippingFee,
		Discount:    discount,
		Total:       subtotal.Add(tax).Add(p.ShippingFee).Sub(discount),
	}
}
