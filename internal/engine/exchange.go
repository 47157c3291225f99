// Package engine orchestrates matching over the book and the ledger. The
// Exchange itself holds no market state beyond the arrival sequence
// counter; it is the serialization point for everything that does.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hati/internal/book"
	"hati/internal/common"
	"hati/internal/ledger"
)

// Reporter receives execution reports for both parties of a fill. The
// network layer implements this to push reports to connected clients.
type Reporter interface {
	ReportFill(fill common.Fill)
}

type Exchange struct {
	// mu is the single instrument lock. Mutating entry points take the
	// write lock; Depth, Quote and Balances run under the read lock, so
	// they never observe a half-applied matching pass.
	mu sync.RWMutex

	book     *book.Book
	ledger   *ledger.Ledger
	reporter Reporter

	seq uint64
}

// SubmitResult is returned for every accepted submission, fully matched
// or not.
type SubmitResult struct {
	OrderID   string
	Filled    decimal.Decimal
	Remaining decimal.Decimal
}

func New(l *ledger.Ledger) *Exchange {
	return &Exchange{
		book:   book.New(),
		ledger: l,
	}
}

// SetReporter wires the fill reporter. Pass nil to silence reports.
func (e *Exchange) SetReporter(r Reporter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reporter = r
}

// SubmitOrder validates an incoming order against the full requested
// quantity, matches it against the opposite side in priority order, and
// rests any remainder. Validation failures abort with zero state change;
// after validation the whole matching pass commits as one unit under the
// instrument lock.
func (e *Exchange) SubmitOrder(side common.Side, account string, price, quantity decimal.Decimal) (SubmitResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !side.Valid() {
		return SubmitResult{}, fmt.Errorf("%w: unknown side %d", common.ErrInvalidOrder, side)
	}
	if !price.IsPositive() {
		return SubmitResult{}, fmt.Errorf("%w: price %s must be positive", common.ErrInvalidOrder, price)
	}
	if !quantity.IsPositive() {
		return SubmitResult{}, fmt.Errorf("%w: quantity %s must be positive", common.ErrInvalidOrder, quantity)
	}
	// Affordability is checked once here for the entire order, never per
	// fill. A partially affordable order is rejected outright.
	if err := e.ledger.CanAfford(account, side, price, quantity); err != nil {
		return SubmitResult{}, err
	}

	e.seq++
	taker := &common.Order{
		UUID:     uuid.New().String(),
		Side:     side,
		Price:    price,
		Quantity: quantity,
		Sequence: e.seq,
		Owner:    account,
	}

	remaining := e.match(taker)

	if remaining.IsPositive() {
		resting := &common.Order{
			UUID:     taker.UUID,
			Side:     side,
			Price:    price,
			Quantity: remaining,
			Sequence: taker.Sequence,
			Owner:    account,
		}
		if err := e.book.Insert(resting); err != nil {
			// Inputs were validated above; a failed insert is a defect.
			panic(fmt.Sprintf("engine: resting remainder rejected by book: %v", err))
		}
	}

	return SubmitResult{
		OrderID:   taker.UUID,
		Filled:    quantity.Sub(remaining),
		Remaining: remaining,
	}, nil
}

// match walks the opposite side in priority order and executes fills at
// each maker's price. Makers priced outside the taker's limit are skipped
// but do not stop the walk; the pass only ends when the taker is
// exhausted or the side runs out. Callers hold the write lock.
func (e *Exchange) match(taker *common.Order) decimal.Decimal {
	remaining := taker.Quantity

	for _, maker := range e.book.Opposite(taker.Side) {
		if remaining.IsZero() {
			break
		}
		if !crosses(taker.Side, taker.Price, maker.Price) {
			continue
		}

		fillQty := decimal.Min(remaining, maker.Quantity)
		// Resting orders reserve nothing, so the maker's owner may have
		// spent the backing balance through a later order. A stale maker
		// cannot settle; evict it and keep walking.
		if e.ledger.CanAfford(maker.Owner, maker.Side, maker.Price, fillQty) != nil {
			e.book.Delist(maker)
			continue
		}
		if err := e.ledger.Transfer(maker.Owner, taker.Owner, maker.Price, fillQty, taker.Side); err != nil {
			// Both accounts were known when their orders were accepted.
			panic(fmt.Sprintf("engine: fill settlement failed: %v", err))
		}

		remaining = remaining.Sub(fillQty)
		maker.Quantity = maker.Quantity.Sub(fillQty)
		if maker.Quantity.IsZero() {
			e.book.Delist(maker)
		} else if maker.Quantity.IsNegative() {
			panic(fmt.Sprintf("engine: maker %s overfilled to %s", maker.UUID, maker.Quantity))
		}

		if e.reporter != nil {
			e.reporter.ReportFill(common.Fill{
				Maker:     maker,
				Taker:     taker,
				Timestamp: time.Now(),
				Quantity:  fillQty,
				Price:     maker.Price,
			})
		}
	}
	return remaining
}

// crosses reports whether a maker at makerPrice is eligible for a taker
// with the given side and limit.
func crosses(takerSide common.Side, limit, makerPrice decimal.Decimal) bool {
	if takerSide == common.Buy {
		return makerPrice.LessThanOrEqual(limit)
	}
	return makerPrice.GreaterThanOrEqual(limit)
}

// CancelOrder removes a resting order for its owner. A resting order has
// moved no balance yet, so cancellation touches only the book.
func (e *Exchange) CancelOrder(orderID, account string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := e.book.Remove(orderID, account)
	return err
}

// Depth returns the aggregated resting quantity per price level per side.
func (e *Exchange) Depth() map[string]book.DepthLevel {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.book.Depth()
}

// Balances returns the asset balances for one account.
func (e *Exchange) Balances(account string) (map[string]decimal.Decimal, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Balances(account)
}

// Reset clears both book sides and restores every account to its seed
// balances. Test isolation only.
func (e *Exchange) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.book = book.New()
	e.ledger.Reset()
}
