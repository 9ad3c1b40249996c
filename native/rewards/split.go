package rewards

// SplitResult divides a gross reward between the recipient and the platform
// operating fund.
type SplitResult struct {
	UserShare     Units
	PlatformShare Units
}

// Split divides a gross reward at the fixed 2:1 user/platform ratio. The user
// share is rounded half-up to one decimal; the platform share is derived by
// subtraction so that UserShare+PlatformShare always equals the gross amount
// exactly.
func Split(gross Units) SplitResult {
	if gross <= 0 {
		return SplitResult{}
	}
	// round half-up of gross*2/3 in integer tenths
	user := (4*gross + 3) / 6
	return SplitResult{
		UserShare:     user,
		PlatformShare: gross - user,
	}
}
