package rewards

import "math"

// CO2 savings per mile relative to a single-occupancy personal vehicle, in
// grams. The receipt dollar amount is treated as a distance proxy at one mile
// per dollar.
const (
	gramsPerMileRideshare = 259
	gramsPerMileTransit   = 322
	gramsPerMileEVRental  = 202
)

// EstimateCO2SavingsGrams returns the deterministic CO2-savings figure for a
// receipt, rounded to the nearest gram. Unrecognised categories fall back to
// the transit constant. Non-positive amounts estimate zero savings.
func EstimateCO2SavingsGrams(category Category, receiptAmountUSD float64) int64 {
	if receiptAmountUSD <= 0 || math.IsNaN(receiptAmountUSD) || math.IsInf(receiptAmountUSD, 0) {
		return 0
	}
	var perMile float64
	switch category {
	case CategoryRideshare:
		perMile = gramsPerMileRideshare
	case CategoryEVRental:
		perMile = gramsPerMileEVRental
	default:
		perMile = gramsPerMileTransit
	}
	return int64(math.Round(receiptAmountUSD * perMile))
}
