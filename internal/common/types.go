package common

type Side int

const (
	Buy Side = iota
	Sell
)

// Valid reports whether the side is one of the two known sides. Orders
// carrying anything else are rejected before they reach the book.
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Opposite returns the side a taker with this side consumes liquidity from.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return "UNKNOWN"
}
