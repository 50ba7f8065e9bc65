package service

import (
	"github.com/shopspring/decimal"

	"github.com/tabemono-pos/api/internal/database"
)

// PointsEarned is how many loyalty points a payment of amount earns under
// rule: one point per full AmountPerPoint, nothing below MinAmount.
func PointsEarned(rule database.PointSystem, amount decimal.Decimal) int64 {
	per := numericToDecimal(rule.AmountPerPoint)
	if !per.IsPositive() || amount.LessThan(numericToDecimal(rule.MinAmount)) {
		return 0
	}
	return amount.Div(per).Floor().IntPart()
}
