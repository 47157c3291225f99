// Package ledger owns the two-asset balances for every account on the
// exchange. Balances only move through Transfer, which applies both legs
// of a fill as one step, so the per-asset sum across all accounts is
// conserved by construction.
//
// The ledger does no locking of its own: the engine serializes all access
// under its instrument lock.
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"hati/internal/common"
)

// Seed is one account's starting balances, used at construction and again
// by Reset.
type Seed struct {
	Account string
	Base    decimal.Decimal
	Quote   decimal.Decimal
}

type Ledger struct {
	baseAsset  string
	quoteAsset string
	seeds      []Seed

	// accounts maps account id -> asset symbol -> balance.
	accounts map[string]map[string]decimal.Decimal
}

func New(baseAsset, quoteAsset string, seeds []Seed) *Ledger {
	l := &Ledger{
		baseAsset:  baseAsset,
		quoteAsset: quoteAsset,
		seeds:      seeds,
	}
	l.Reset()
	return l
}

// Reset reinitializes every account to its seed balances. Accounts live
// for the process lifetime; Reset never adds or removes one.
func (l *Ledger) Reset() {
	l.accounts = make(map[string]map[string]decimal.Decimal, len(l.seeds))
	for _, seed := range l.seeds {
		l.accounts[seed.Account] = map[string]decimal.Decimal{
			l.baseAsset:  seed.Base,
			l.quoteAsset: seed.Quote,
		}
	}
}

// BaseAsset returns the traded instrument's symbol.
func (l *Ledger) BaseAsset() string { return l.baseAsset }

// QuoteAsset returns the symbol of the currency the instrument is priced in.
func (l *Ledger) QuoteAsset() string { return l.quoteAsset }

func (l *Ledger) HasAccount(account string) bool {
	_, ok := l.accounts[account]
	return ok
}

// CanAfford checks that the account can cover the full order: a buy needs
// price*quantity of the quote asset, a sell needs quantity of the base
// asset. Pure; the returned error names the asset that is short.
func (l *Ledger) CanAfford(account string, side common.Side, price, quantity decimal.Decimal) error {
	balances, ok := l.accounts[account]
	if !ok {
		return fmt.Errorf("%w: %q", common.ErrAccountNotFound, account)
	}

	switch side {
	case common.Buy:
		cost := price.Mul(quantity)
		if balances[l.quoteAsset].LessThan(cost) {
			return fmt.Errorf("%w: need %s %s, have %s", common.ErrInsufficientBalance,
				cost, l.quoteAsset, balances[l.quoteAsset])
		}
	case common.Sell:
		if balances[l.baseAsset].LessThan(quantity) {
			return fmt.Errorf("%w: need %s %s, have %s", common.ErrInsufficientBalance,
				quantity, l.baseAsset, balances[l.baseAsset])
		}
	}
	return nil
}

// Transfer settles one fill between maker and taker: quantity of the base
// asset and price*quantity of the quote asset swap owners in the direction
// implied by takerSide. A buying taker receives base and pays quote.
//
// The engine validates the taker's affordability at submission and
// re-checks the maker's immediately before each fill. A balance going
// negative here therefore means a caller bypassed those checks, which is
// a defect, not a runtime condition: Transfer panics rather than
// committing the corruption.
func (l *Ledger) Transfer(maker, taker string, price, quantity decimal.Decimal, takerSide common.Side) error {
	makerBal, ok := l.accounts[maker]
	if !ok {
		return fmt.Errorf("%w: maker %q", common.ErrAccountNotFound, maker)
	}
	takerBal, ok := l.accounts[taker]
	if !ok {
		return fmt.Errorf("%w: taker %q", common.ErrAccountNotFound, taker)
	}

	notional := price.Mul(quantity)

	// Base flows to the buyer, quote to the seller.
	buyer, seller := takerBal, makerBal
	if takerSide == common.Sell {
		buyer, seller = makerBal, takerBal
	}

	buyer[l.baseAsset] = buyer[l.baseAsset].Add(quantity)
	seller[l.baseAsset] = seller[l.baseAsset].Sub(quantity)
	seller[l.quoteAsset] = seller[l.quoteAsset].Add(notional)
	buyer[l.quoteAsset] = buyer[l.quoteAsset].Sub(notional)

	if seller[l.baseAsset].IsNegative() || buyer[l.quoteAsset].IsNegative() {
		panic(fmt.Sprintf("ledger: transfer of %s@%s between %q and %q drove a balance negative",
			quantity, price, maker, taker))
	}
	return nil
}

// Balances returns a copy of the account's asset balances.
func (l *Ledger) Balances(account string) (map[string]decimal.Decimal, error) {
	balances, ok := l.accounts[account]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrAccountNotFound, account)
	}
	out := make(map[string]decimal.Decimal, len(balances))
	for asset, balance := range balances {
		out[asset] = balance
	}
	return out, nil
}

// Total sums one asset's balance across every account. Transfer conserves
// this quantity; tests lean on it.
func (l *Ledger) Total(asset string) decimal.Decimal {
	total := decimal.Zero
	for _, balances := range l.accounts {
		total = total.Add(balances[asset])
	}
	return total
}
