package rewards

import "testing"

func Test_EstimateCO2SavingsGrams(t *testing.T) {
	cases := []struct {
		category Category
		amount   float64
		want     int64
	}{
		{CategoryRideshare, 20, 5180},
		{CategoryTransit, 10, 3220},
		{CategoryEVRental, 10, 2020},
		{Category("unknown_category"), 10, 3220}, // falls back to transit
		{CategoryStoreAddition, 5, 1610},
		{CategoryRideshare, 0, 0},
		{CategoryTransit, -5, 0},
		{CategoryRideshare, 1.5, 389}, // 388.5 rounds to nearest gram
	}
	for _, tc := range cases {
		got := EstimateCO2SavingsGrams(tc.category, tc.amount)
		if got != tc.want {
			t.Fatalf("estimate(%s, %f): got %d want %d", tc.category, tc.amount, got, tc.want)
		}
	}
}
