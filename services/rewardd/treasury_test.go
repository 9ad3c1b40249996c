package rewardd

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

func staticFetcher(balance int64) func(context.Context) (*big.Int, error) {
	return func(context.Context) (*big.Int, error) {
		return big.NewInt(balance), nil
	}
}

func TestTreasuryReserveCommitRelease(t *testing.T) {
	allocator := NewTreasuryAllocator(staticFetcher(100))

	degraded, err := allocator.Reserve(context.Background(), big.NewInt(60))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if degraded {
		t.Fatal("fresh balance read should not be degraded")
	}

	// 40 remain unreserved; a 50 reservation must fail even though the raw
	// balance still reads 100.
	if _, err := allocator.Reserve(context.Background(), big.NewInt(50)); !errors.Is(err, ErrInsufficientTreasury) {
		t.Fatalf("expected ErrInsufficientTreasury, got %v", err)
	}

	allocator.Release(big.NewInt(60))
	if _, err := allocator.Reserve(context.Background(), big.NewInt(50)); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
	allocator.Commit(big.NewInt(50))

	available, _ := allocator.Snapshot()
	if available.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("available = %s, want 50", available)
	}
}

func TestTreasuryDegradedFallback(t *testing.T) {
	calls := 0
	fetch := func(context.Context) (*big.Int, error) {
		calls++
		if calls == 1 {
			return big.NewInt(100), nil
		}
		return nil, errors.New("node down")
	}
	allocator := NewTreasuryAllocator(fetch)

	if degraded, err := allocator.Reserve(context.Background(), big.NewInt(30)); err != nil || degraded {
		t.Fatalf("first reserve: degraded=%v err=%v", degraded, err)
	}

	// Second reserve runs against the stale figure and must say so.
	degraded, err := allocator.Reserve(context.Background(), big.NewInt(30))
	if err != nil {
		t.Fatalf("degraded reserve: %v", err)
	}
	if !degraded {
		t.Fatal("stale-balance reserve must report degraded")
	}

	// The stale figure still bounds reservations.
	if _, err := allocator.Reserve(context.Background(), big.NewInt(50)); !errors.Is(err, ErrInsufficientTreasury) {
		t.Fatalf("expected ErrInsufficientTreasury on stale balance, got %v", err)
	}
}

func TestTreasuryUnavailableWithoutHistory(t *testing.T) {
	allocator := NewTreasuryAllocator(func(context.Context) (*big.Int, error) {
		return nil, errors.New("node down")
	})
	if _, err := allocator.Reserve(context.Background(), big.NewInt(1)); !errors.Is(err, ErrTreasuryUnavailable) {
		t.Fatalf("expected ErrTreasuryUnavailable, got %v", err)
	}
}

func TestTreasuryPendingOutflowReconciles(t *testing.T) {
	balance := big.NewInt(100)
	allocator := NewTreasuryAllocator(func(context.Context) (*big.Int, error) {
		return new(big.Int).Set(balance), nil
	})

	if _, err := allocator.Reserve(context.Background(), big.NewInt(30)); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	allocator.Commit(big.NewInt(30))

	// The node still reports the old balance; committed funds must stay
	// deducted.
	available, _ := allocator.Snapshot()
	if available.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("available = %s, want 70", available)
	}
	if _, err := allocator.Reserve(context.Background(), big.NewInt(80)); !errors.Is(err, ErrInsufficientTreasury) {
		t.Fatalf("expected ErrInsufficientTreasury against pending outflow, got %v", err)
	}

	// Once the chain reflects the spend, the pending outflow clears and is
	// not deducted twice.
	balance.SetInt64(70)
	if _, err := allocator.Reserve(context.Background(), big.NewInt(70)); err != nil {
		t.Fatalf("reserve after reconciliation: %v", err)
	}
}

func TestTreasuryRejectsNonPositiveReserve(t *testing.T) {
	allocator := NewTreasuryAllocator(staticFetcher(100))
	if _, err := allocator.Reserve(context.Background(), big.NewInt(0)); err == nil {
		t.Fatal("zero reserve must be rejected")
	}
	if _, err := allocator.Reserve(context.Background(), nil); err == nil {
		t.Fatal("nil reserve must be rejected")
	}
}
