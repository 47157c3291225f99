package common

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Fill records one matched quantity between a taker and a resting maker.
// The price is always the maker's limit price. Fills are ephemeral: they
// are handed to the ledger and the reporter, never stored.
type Fill struct {
	Maker     *Order
	Taker     *Order
	Timestamp time.Time
	Quantity  decimal.Decimal
	Price     decimal.Decimal
}

func (f Fill) String() string {
	return fmt.Sprintf(
		`Maker: [
%s]
Taker: [
%s]
Timestamp: %v
Quantity:  %s
Price:     %s`,
		f.Maker.String(),
		f.Taker.String(),
		f.Timestamp.Format(time.RFC3339),
		f.Quantity,
		f.Price,
	)
}
