package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Order is the transient order a discount is priced against. It is never
// persisted by this service.
type Order struct {
	Subtotal        decimal.Decimal
	DeliveryFee     decimal.Decimal
	DiscountApplied decimal.Decimal
	Total           decimal.Decimal
}

// NewOrder returns an undiscounted order.
func NewOrder(subtotal, deliveryFee decimal.Decimal) (Order, error) {
	if subtotal.IsNegative() || deliveryFee.IsNegative() {
		return Order{}, fmt.Errorf("%w: order amounts must not be negative", ErrInvalidInput)
	}
	return Order{
		Subtotal:    subtotal,
		DeliveryFee: deliveryFee,
		Total:       subtotal.Add(deliveryFee),
	}, nil
}

// DiscountFor returns the unrounded discount of percent on the amount that
// t targets.
func (o Order) DiscountFor(t DiscountType, percent decimal.Decimal) decimal.Decimal {
	base := o.Subtotal
	if t == DiscountDelivery {
		base = o.DeliveryFee
	}
	return base.Mul(percent).Div(hundred)
}

// WithDiscount rounds discount to cents (banker's rounding) and derives the
// total from the rounded amount so both fields always agree.
func (o Order) WithDiscount(discount decimal.Decimal) Order {
	o.DiscountApplied = discount.RoundBank(2)
	o.Total = o.Subtotal.Add(o.DeliveryFee).Sub(o.DiscountApplied)
	return o
}
