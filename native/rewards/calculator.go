package rewards

// Reward constants, all in tenths of a token.
const (
	// BaseReceiptReward is granted for every verified receipt.
	BaseReceiptReward Units = 80
	// ReceiptRewardCap clamps base plus amount bonus before any multiplier.
	ReceiptRewardCap Units = 150
	// DigitalPaymentBonus applies to any non-cash, non-unknown payment.
	DigitalPaymentBonus Units = 3
	// PlatformCardBonus replaces the digital bonus when the receipt was paid
	// with the platform's co-branded card.
	PlatformCardBonus Units = 10
	// MonthlyStreakBonus is added after the multiplier when the user was
	// active in every week of the current calendar month.
	MonthlyStreakBonus Units = 100

	// streak multiplier in tenths: 1.0x plus 0.1x per weekly streak, capped at 1.5x.
	baseMultiplierTenths = 10
	maxMultiplierTenths  = 15
)

// CardMatcher reports whether a card last-four identifies the platform's
// co-branded card. The heuristic (allow-list, ecosystem keywords) lives with
// the caller; the calculator treats it as opaque.
type CardMatcher func(lastFour string) bool

// Calculator derives the gross reward for validated receipts and
// achievements.
type Calculator struct {
	platformCard CardMatcher
}

// NewCalculator constructs a calculator. matcher may be nil, in which case no
// receipt ever earns the platform-card bonus.
func NewCalculator(matcher CardMatcher) *Calculator {
	return &Calculator{platformCard: matcher}
}

// ComputeGrossReward returns the gross reward for a verified receipt. The
// result is always non-negative; malformed or negative amounts contribute a
// zero amount bonus rather than an error.
//
// Stages, each rounded half-up to one decimal place:
//  1. amount bonus = receiptAmountUSD / 10 * 0.1
//  2. base + amount bonus, clamped to the receipt cap
//  3. plus the payment bonus
//  4. times the streak multiplier min(1.5, 1 + 0.1*weeks)
//  5. plus the monthly streak bonus
func (c *Calculator) ComputeGrossReward(receiptAmountUSD float64, streak StreakInfo, method PaymentMethod, cardLastFour string) Units {
	bonus := amountBonus(receiptAmountUSD)

	gross := BaseReceiptReward + bonus
	if gross > ReceiptRewardCap {
		gross = ReceiptRewardCap
	}
	gross += c.paymentBonus(method, cardLastFour)

	mult := baseMultiplierTenths
	if streak.WeeklyStreakCount > 0 {
		mult += streak.WeeklyStreakCount
	}
	if mult > maxMultiplierTenths {
		mult = maxMultiplierTenths
	}
	gross = mulTenths(gross, Units(mult))

	if streak.MonthlyStreakComplete {
		gross += MonthlyStreakBonus
	}
	if gross < 0 {
		gross = 0
	}
	return gross
}

// amountBonus converts the dollar amount into bonus tenths. One dollar maps
// to 0.01 token, i.e. one tenth per ten dollars.
func amountBonus(receiptAmountUSD float64) Units {
	if receiptAmountUSD <= 0 {
		return 0
	}
	bonus := UnitsFromFloat(receiptAmountUSD / 10 * 0.1)
	if bonus < 0 {
		return 0
	}
	return bonus
}

func (c *Calculator) paymentBonus(method PaymentMethod, cardLastFour string) Units {
	switch method {
	case PaymentCash, PaymentUnknown, "":
		return 0
	case PaymentLedgerCard:
		return PlatformCardBonus
	}
	if c != nil && c.platformCard != nil && c.platformCard(cardLastFour) {
		return PlatformCardBonus
	}
	return DigitalPaymentBonus
}

// mulTenths multiplies a tenths amount by a multiplier expressed in tenths,
// rounding the result half-up back to tenths.
func mulTenths(amount, multiplier Units) Units {
	if amount <= 0 {
		return 0
	}
	return (amount*multiplier + 5) / 10
}
