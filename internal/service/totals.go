package service

import "github.com/shopspring/decimal"

// LineAmount is one priced order line.
type LineAmount struct {
	UnitPrice decimal.Decimal
	Quantity  int32
}

// TotalsInput carries everything the order total depends on.
type TotalsInput struct {
	Lines          []LineAmount
	ManualDiscount decimal.Decimal
	CouponDiscount decimal.Decimal
	PointsDiscount decimal.Decimal
	DeliveryFee    decimal.Decimal
}

// Totals are the derived money fields of an order.
type Totals struct {
	OrderAmount decimal.Decimal
	// Discounts is the manual discount plus every coupon discount.
	Discounts  decimal.Decimal
	TotalMoney decimal.Decimal
}

// CalculateTotals computes orderAmount = sum(unit price * qty) and
// totalMoney = orderAmount - discounts - pointsDiscount + deliveryFee.
// A negative total is rejected, never clamped.
func CalculateTotals(in TotalsInput) (Totals, error) {
	if in.ManualDiscount.IsNegative() || in.CouponDiscount.IsNegative() ||
		in.PointsDiscount.IsNegative() || in.DeliveryFee.IsNegative() {
		return Totals{}, ErrInvalidAmount
	}

	amount := decimal.Zero
	for _, l := range in.Lines {
		if l.Quantity <= 0 {
			return Totals{}, ErrInvalidQuantity
		}
		if l.UnitPrice.IsNegative() {
			return Totals{}, ErrInvalidAmount
		}
		amount = amount.Add(l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity)))
	}

	discounts := in.ManualDiscount.Add(in.CouponDiscount)
	total := amount.Sub(discounts).Sub(in.PointsDiscount).Add(in.DeliveryFee)
	if total.IsNegative() {
		return Totals{}, ErrNegativeTotal
	}

	return Totals{
		OrderAmount: amount,
		Discounts:   discounts,
		TotalMoney:  total,
	}, nil
}
