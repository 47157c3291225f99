package common

import "errors"

// Sentinel errors shared across the engine. All are terminal for the
// operation that raised them; the engine guarantees zero state change
// when any of these is returned.
var (
	ErrInvalidOrder          = errors.New("invalid order")
	ErrAccountNotFound       = errors.New("account not found")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrOrderNotFound         = errors.New("order not found")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
)
