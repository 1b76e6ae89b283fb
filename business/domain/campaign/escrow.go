package campaign

import (
	"math/bits"
	"sync"
)

// Wallet receives every payout that leaves the escrow. Credit must fail with
// ErrAmountOverflow, and apply nothing, if the balance cannot hold the amount.
type Wallet interface {
	Credit(handle string, amount uint64) error
	BalanceOf(handle string) uint64
}

// Accounts is an in-memory Wallet keeping the balance each handle received.
type Accounts struct {
	mu       sync.RWMutex
	balances map[string]uint64
}

func NewAccounts() *Accounts {
	return &Accounts{balances: make(map[string]uint64)}
}

func (a *Accounts) Credit(handle string, amount uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	sum, err := addAmount(a.balances[handle], amount)
	if err != nil {
		return err
	}
	a.balances[handle] = sum
	return nil
}

func (a *Accounts) BalanceOf(handle string) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.balances[handle]
}

// escrow holds the pooled campaign funds. The zero value is an empty escrow.
type escrow struct {
	balance uint64
}

// creditable returns the balance after crediting amount without applying it.
func (e *escrow) creditable(amount uint64) (uint64, error) {
	return addAmount(e.balance, amount)
}

func (e *escrow) covers(amount uint64) bool {
	return e.balance >= amount
}

// debit must only be called after covers returned true for the amount.
func (e *escrow) debit(amount uint64) {
	e.balance -= amount
}

func addAmount(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}

func mulAmount(amount uint64, count int) (uint64, error) {
	hi, lo := bits.Mul64(amount, uint64(count))
	if hi != 0 {
		return 0, ErrAmountOverflow
	}
	return lo, nil
}
