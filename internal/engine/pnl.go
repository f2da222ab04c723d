package engine

import (
	"cryptosim/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// UnrealizedPL is the paper profit of an open position at the current price:
// longs gain as price rises above cost, shorts as it falls below.
func UnrealizedPL(pos model.Position, currentPrice decimal.Decimal) decimal.Decimal {
	if pos.Quantity.Sign() > 0 {
		return pos.Quantity.Mul(currentPrice.Sub(pos.AvgPrice))
	}
	return pos.Quantity.Abs().Mul(pos.AvgPrice.Sub(currentPrice))
}

// UnrealizedPLPercent is the unrealized P/L relative to the position's cost
// basis, in percent. Zero when the cost basis is zero.
func UnrealizedPLPercent(pos model.Position, currentPrice decimal.Decimal) decimal.Decimal {
	basis := pos.Quantity.Abs().Mul(pos.AvgPrice)
	if basis.IsZero() {
		return decimal.Zero
	}
	return UnrealizedPL(pos, currentPrice).Div(basis).Mul(hundred)
}
