package common

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Order is a limit order. While resting it is owned exclusively by the
// book; Price and Quantity are strictly positive for as long as it rests.
type Order struct {
	UUID     string          // Order tracked uuid
	Side     Side            // Order side
	Price    decimal.Decimal // Limiting price
	Quantity decimal.Decimal // Remaining quantity
	Sequence uint64          // Arrival sequence, the price-tie break
	Owner    string          // Who owns this order
}

func (order Order) String() string {
	return fmt.Sprintf(
		`UUID:     %s
Side:     %v
Price:    %s
Quantity: %s
Sequence: %d
Owner:    %s`,
		order.UUID,
		order.Side,
		order.Price,
		order.Quantity,
		order.Sequence,
		order.Owner,
	)
}
