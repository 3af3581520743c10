package market

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger tracks the two pools of value the engine owns: spendable escrow
// deposits (payments are debited from here) and claimable proceeds
// (settlement credits accrue here until withdrawn). Assets in transit are
// never mixed into either pool.
//
// Not safe for concurrent use; the engine's mutex guards all access.
type Ledger struct {
	balances map[common.Address]*big.Int
	proceeds map[common.Address]*big.Int
}

func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]*big.Int),
		proceeds: make(map[common.Address]*big.Int),
	}
}

func (l *Ledger) Credit(addr common.Address, amount *big.Int) {
	cur, ok := l.balances[addr]
	if !ok {
		cur = new(big.Int)
		l.balances[addr] = cur
	}
	cur.Add(cur, amount)
}

// Debit removes amount from addr's spendable balance, failing with
// ErrInsufficientFunds without partial effect.
func (l *Ledger) Debit(addr common.Address, amount *big.Int) error {
	cur, ok := l.balances[addr]
	if !ok || cur.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	cur.Sub(cur, amount)
	return nil
}

func (l *Ledger) BalanceOf(addr common.Address) *big.Int {
	if cur, ok := l.balances[addr]; ok {
		return new(big.Int).Set(cur)
	}
	return new(big.Int)
}

func (l *Ledger) CreditProceeds(addr common.Address, amount *big.Int) {
	cur, ok := l.proceeds[addr]
	if !ok {
		cur = new(big.Int)
		l.proceeds[addr] = cur
	}
	cur.Add(cur, amount)
}

func (l *Ledger) ProceedsOf(addr common.Address) *big.Int {
	if cur, ok := l.proceeds[addr]; ok {
		return new(big.Int).Set(cur)
	}
	return new(big.Int)
}

// TakeProceeds zeroes addr's claimable balance and returns what it held.
// Callers must zero BEFORE attempting the outbound transfer and restore
// with RestoreProceeds if the transfer fails.
func (l *Ledger) TakeProceeds(addr common.Address) *big.Int {
	cur, ok := l.proceeds[addr]
	if !ok {
		return new(big.Int)
	}
	amount := new(big.Int).Set(cur)
	cur.SetInt64(0)
	return amount
}

func (l *Ledger) RestoreProceeds(addr common.Address, amount *big.Int) {
	l.CreditProceeds(addr, amount)
}

// PaymentRail moves value out of the engine: proceeds claims and deposit
// withdrawals. Implementations may fail; callers restore ledger state on
// failure so accounting never drifts from actual balances.
type PaymentRail interface {
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error
}
