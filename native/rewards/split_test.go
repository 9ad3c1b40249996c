package rewards

import "testing"

func Test_Split_Conservation(t *testing.T) {
	// The platform share is derived by subtraction, so conservation must be
	// exact for every representable gross amount, with zero rounding drift.
	for gross := Units(0); gross <= 400; gross++ {
		result := Split(gross)
		if result.UserShare+result.PlatformShare != gross {
			t.Fatalf("split of %s does not conserve: user=%s platform=%s", gross, result.UserShare, result.PlatformShare)
		}
		if result.UserShare < 0 || result.PlatformShare < 0 {
			t.Fatalf("split of %s produced a negative share", gross)
		}
	}
}

func Test_Split_Ratio(t *testing.T) {
	cases := []struct {
		gross, user, platform Units
	}{
		{0, 0, 0},
		{30, 20, 10},   // 3.0 -> 2.0 / 1.0
		{106, 71, 35},  // 10.6 -> 7.1 / 3.5
		{150, 100, 50}, // 15.0 -> 10.0 / 5.0
		{1, 1, 0},      // 0.1 rounds entirely to the user
		{325, 217, 108},
	}
	for _, tc := range cases {
		result := Split(tc.gross)
		if result.UserShare != tc.user || result.PlatformShare != tc.platform {
			t.Fatalf("split of %s: got %s/%s want %s/%s",
				tc.gross, result.UserShare, result.PlatformShare, tc.user, tc.platform)
		}
	}
}

func Test_Split_NegativeGross(t *testing.T) {
	if result := Split(-10); result.UserShare != 0 || result.PlatformShare != 0 {
		t.Fatalf("negative gross must split to zero: %+v", result)
	}
}
