// Package sponsor decides whether the platform pays a user's gas-token fee
// for an upcoming transaction.
package sponsor

import (
	"context"
	"fmt"
	"math/big"
)

// TransactionKind labels the transaction a sponsoring decision applies to.
const KindRewardDistribution = "reward_distribution"

// Reason codes for sponsoring decisions.
type Reason string

const (
	ReasonInsufficientFunds  Reason = "insufficient_funds"
	ReasonNewcomer           Reason = "newcomer_onboarding"
	ReasonBalanceBuilding    Reason = "balance_building"
	ReasonSufficientBalance  Reason = "sufficient_balance"
	ReasonBalanceUnavailable Reason = "balance_unavailable"
)

// Gas-token thresholds in whole tokens. Comparisons happen in the token's
// smallest unit.
const (
	estimatedGasCostTokens = 4
	newcomerThreshold      = 5
	lowBalanceThreshold    = 10
)

var (
	tokenWei         = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	estimatedGasCost = new(big.Int).Mul(big.NewInt(estimatedGasCostTokens), tokenWei)
	newcomerLimit    = new(big.Int).Mul(big.NewInt(newcomerThreshold), tokenWei)
	lowBalanceLimit  = new(big.Int).Mul(big.NewInt(lowBalanceThreshold), tokenWei)
)

// Decision is the structured outcome of a sponsoring evaluation. Message is
// suitable for direct display; no formatting logic lives outside this
// package.
type Decision struct {
	ShouldSponsor    bool
	Reason           Reason
	Message          string
	EstimatedGasCost *big.Int
	BalanceObserved  *big.Int
	// Degraded marks a decision taken without a balance observation.
	Degraded bool
}

// BalanceReader supplies the recipient's current gas-token balance.
type BalanceReader interface {
	GasBalance(ctx context.Context, address string) (*big.Int, error)
}

// Engine evaluates the tiered sponsoring policy against live balances.
type Engine struct {
	reader BalanceReader
}

// NewEngine constructs a sponsoring engine backed by the supplied balance
// reader.
func NewEngine(reader BalanceReader) *Engine {
	return &Engine{reader: reader}
}

// Evaluate reads the recipient's gas balance and applies the policy. When the
// balance read fails the engine sponsors with an explicit degraded reason:
// the exposure is one fixed fee, while refusing could strand a newcomer. The
// degraded flag lets callers account for the unverified cost.
func (e *Engine) Evaluate(ctx context.Context, recipient, transactionKind string) Decision {
	if e == nil || e.reader == nil {
		return degradedDecision()
	}
	balance, err := e.reader.GasBalance(ctx, recipient)
	if err != nil {
		return degradedDecision()
	}
	return Decide(balance, transactionKind)
}

// Decide applies the tiered policy to a pre-fetched balance. Tiers are
// evaluated in order because their conditions overlap; the first match wins.
func Decide(gasBalance *big.Int, transactionKind string) Decision {
	balance := big.NewInt(0)
	if gasBalance != nil {
		balance = new(big.Int).Set(gasBalance)
	}
	decision := Decision{
		EstimatedGasCost: new(big.Int).Set(estimatedGasCost),
		BalanceObserved:  balance,
	}
	switch {
	case balance.Cmp(estimatedGasCost) < 0:
		decision.ShouldSponsor = true
		decision.Reason = ReasonInsufficientFunds
		decision.Message = "We'll cover this transaction fee since your balance can't cover it."
	case balance.Cmp(newcomerLimit) < 0:
		decision.ShouldSponsor = true
		decision.Reason = ReasonNewcomer
		decision.Message = "Welcome aboard! We're covering your transaction fees while you get started."
	case balance.Cmp(lowBalanceLimit) < 0 && transactionKind == KindRewardDistribution:
		decision.ShouldSponsor = true
		decision.Reason = ReasonBalanceBuilding
		decision.Message = "We're covering this fee to help you build your balance."
	default:
		decision.ShouldSponsor = false
		decision.Reason = ReasonSufficientBalance
		decision.Message = fmt.Sprintf("Your balance covers the estimated fee of %d tokens.", estimatedGasCostTokens)
	}
	return decision
}

func degradedDecision() Decision {
	return Decision{
		ShouldSponsor:    true,
		Reason:           ReasonBalanceUnavailable,
		Message:          "We couldn't verify your balance, so this transaction fee is on us.",
		EstimatedGasCost: new(big.Int).Set(estimatedGasCost),
		BalanceObserved:  nil,
		Degraded:         true,
	}
}
