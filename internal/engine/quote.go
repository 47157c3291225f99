package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"hati/internal/common"
)

// Quote prices a hypothetical taker of the given side and quantity against
// current resting liquidity: a buy quote walks the asks from cheapest up, a
// sell quote walks the bids from dearest down, accumulating quantity*price
// until the request is covered. Nothing is mutated.
func (e *Exchange) Quote(side common.Side, quantity decimal.Decimal) (decimal.Decimal, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !side.Valid() {
		return decimal.Zero, fmt.Errorf("%w: unknown side %d", common.ErrInvalidOrder, side)
	}
	if !quantity.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: quantity %s must be positive", common.ErrInvalidOrder, quantity)
	}

	remaining := quantity
	notional := decimal.Zero
	for _, resting := range e.book.Opposite(side) {
		fillQty := decimal.Min(remaining, resting.Quantity)
		notional = notional.Add(fillQty.Mul(resting.Price))
		remaining = remaining.Sub(fillQty)
		if remaining.IsZero() {
			return notional, nil
		}
	}

	return decimal.Zero, fmt.Errorf("%w: %s short of requested %s",
		common.ErrInsufficientLiquidity, remaining, quantity)
}
