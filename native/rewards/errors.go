package rewards

import (
	"errors"
	"math"
)

var (
	// ErrMissingEventID reports a reward event without a unique identifier.
	ErrMissingEventID = errors.New("rewards: event id required")
	// ErrMissingRecipient reports a reward event without a ledger address.
	ErrMissingRecipient = errors.New("rewards: recipient address required")
	// ErrNegativeAmount reports a receipt amount below zero.
	ErrNegativeAmount = errors.New("rewards: receipt amount must be non-negative")
)

// Validate performs the input checks that must fail before any network call.
// Address format validation is left to the executor, which knows the ledger's
// address encoding.
func (e RewardEvent) Validate() error {
	if e.EventID == "" {
		return ErrMissingEventID
	}
	if e.Recipient == "" {
		return ErrMissingRecipient
	}
	if e.ReceiptAmountUSD < 0 || math.IsNaN(e.ReceiptAmountUSD) {
		return ErrNegativeAmount
	}
	return nil
}
