package rewards

import (
	"fmt"
	"math"
	"math/big"
)

// Category identifies the kind of sustainable-transportation action that
// produced a receipt.
type Category string

const (
	CategoryTransit       Category = "transit"
	CategoryRideshare     Category = "rideshare"
	CategoryEVRental      Category = "evRental"
	CategoryStoreAddition Category = "storeAddition"
	CategoryAchievement   Category = "achievement"
	CategoryOther         Category = "other"
)

// PaymentMethod describes how the receipt was paid.
type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "CASH"
	PaymentCardDigital PaymentMethod = "CARD_DIGITAL"
	PaymentLedgerCard  PaymentMethod = "LEDGER_NATIVE_CARD"
	PaymentUnknown     PaymentMethod = "UNKNOWN"
)

// StreakInfo carries the caller-supplied activity streak state used by the
// calculator.
type StreakInfo struct {
	WeeklyStreakCount     int
	MonthlyStreakComplete bool
}

// RewardEvent is the immutable input consumed once per qualifying action.
type RewardEvent struct {
	EventID          string
	Recipient        string
	ReceiptAmountUSD float64
	Category         Category
	PaymentMethod    PaymentMethod
	CardLastFour     string
	ProofReference   string
}

// Units is a reward-token amount held to one decimal place, stored as tenths
// of a token. All reward arithmetic stays in integer tenths so that repeated
// rounding is exact and conversion to the token's smallest unit never touches
// floating point.
type Units int64

// tenthWei is 10^17, the smallest-unit value of one tenth of a token.
var tenthWei = new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil)

// UnitsFromFloat rounds a token amount half-up to one decimal place.
func UnitsFromFloat(v float64) Units {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return Units(math.Floor(v*10 + 0.5))
}

// ParseUnits reverses String, accepting amounts with at most one decimal
// place.
func ParseUnits(s string) (Units, error) {
	var whole, tenth int64
	if n, err := fmt.Sscanf(s, "%d.%d", &whole, &tenth); err != nil || n != 2 {
		if _, err := fmt.Sscanf(s, "%d", &whole); err != nil {
			return 0, fmt.Errorf("rewards: parse units %q: %w", s, err)
		}
		tenth = 0
	}
	if tenth < 0 || tenth > 9 {
		return 0, fmt.Errorf("rewards: parse units %q: fractional part out of range", s)
	}
	if whole < 0 || len(s) > 0 && s[0] == '-' {
		if whole < 0 {
			whole = -whole
		}
		return Units(-(whole*10 + tenth)), nil
	}
	return Units(whole*10 + tenth), nil
}

// Float64 returns the token amount as a float, for display only.
func (u Units) Float64() float64 { return float64(u) / 10 }

// String renders the amount with one decimal place.
func (u Units) String() string {
	sign := ""
	v := int64(u)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%d", sign, v/10, v%10)
}

// Wei converts the amount to the token's smallest unit (10^18 per token).
func (u Units) Wei() *big.Int {
	return new(big.Int).Mul(big.NewInt(int64(u)), tenthWei)
}
