package rewardd

import (
	"context"
	"errors"
	"math/big"
	"sync"
)

// ErrInsufficientTreasury reports that the treasury allocation cannot cover a
// requested distribution. No transaction is attempted in that case.
var ErrInsufficientTreasury = errors.New("rewardd: insufficient treasury funds")

// ErrTreasuryUnavailable reports that the treasury balance could not be read
// and no previously confirmed figure exists to fall back on.
var ErrTreasuryUnavailable = errors.New("rewardd: treasury balance unavailable")

// TreasuryAllocator serialises solvency checks against the shared treasury.
// Concurrent distributions reserve their amounts under one lock, so two
// in-flight distributions can never both pass a check the treasury cannot
// satisfy.
//
// Committed amounts stay deducted as pending outflow until a fresh balance
// read shows the chain has absorbed them; otherwise a stale node balance
// would briefly double-count spent funds.
//
// When the balance read fails the allocator falls back to the last confirmed
// figure and reports the check as degraded instead of silently substituting
// it.
type TreasuryAllocator struct {
	fetch func(ctx context.Context) (*big.Int, error)

	mu        sync.Mutex
	lastKnown *big.Int
	reserved  *big.Int
	pending   *big.Int
	degraded  bool
}

// NewTreasuryAllocator constructs an allocator around a balance fetcher,
// typically a read-only contract call for this application's allocation.
func NewTreasuryAllocator(fetch func(ctx context.Context) (*big.Int, error)) *TreasuryAllocator {
	return &TreasuryAllocator{
		fetch:    fetch,
		reserved: big.NewInt(0),
		pending:  big.NewInt(0),
	}
}

// Reserve holds amount (in smallest units) against the treasury. The boolean
// reports whether the check ran degraded on a stale balance.
func (a *TreasuryAllocator) Reserve(ctx context.Context, amount *big.Int) (bool, error) {
	if amount == nil || amount.Sign() <= 0 {
		return false, errors.New("rewardd: reserve amount must be positive")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	balance, err := a.fetch(ctx)
	if err != nil {
		if a.lastKnown == nil {
			return false, ErrTreasuryUnavailable
		}
		a.degraded = true
	} else {
		a.reconcile(balance)
		a.lastKnown = new(big.Int).Set(balance)
		a.degraded = false
	}

	if a.available().Cmp(amount) < 0 {
		return a.degraded, ErrInsufficientTreasury
	}
	a.reserved.Add(a.reserved, amount)
	return a.degraded, nil
}

// reconcile credits pending outflow against the drop observed in a fresh
// balance read. Called with the lock held.
func (a *TreasuryAllocator) reconcile(balance *big.Int) {
	if a.lastKnown == nil || a.pending.Sign() == 0 {
		return
	}
	drop := new(big.Int).Sub(a.lastKnown, balance)
	if drop.Sign() <= 0 {
		return
	}
	if drop.Cmp(a.pending) > 0 {
		drop = a.pending
	}
	a.pending = new(big.Int).Sub(a.pending, drop)
}

// available is lastKnown minus everything reserved or in flight. Called with
// the lock held.
func (a *TreasuryAllocator) available() *big.Int {
	out := new(big.Int).Sub(a.lastKnown, a.reserved)
	out.Sub(out, a.pending)
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out
}

// Commit finalises a reservation whose funds have been submitted for
// spending. The amount moves to pending outflow until the chain balance
// reflects it.
func (a *TreasuryAllocator) Commit(amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reserved.Sub(a.reserved, amount)
	if a.reserved.Sign() < 0 {
		a.reserved.SetInt64(0)
	}
	a.pending.Add(a.pending, amount)
}

// Release returns a reservation that was never submitted.
func (a *TreasuryAllocator) Release(amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reserved.Sub(a.reserved, amount)
	if a.reserved.Sign() < 0 {
		a.reserved.SetInt64(0)
	}
}

// Snapshot reports the unreserved allocation and degraded state for
// observability endpoints.
func (a *TreasuryAllocator) Snapshot() (available *big.Int, degraded bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastKnown == nil {
		return big.NewInt(0), a.degraded
	}
	return a.available(), a.degraded
}
