package rewards

// Achievement identifies a one-off milestone reward.
type Achievement string

const (
	AchievementFirstReceipt    Achievement = "first_receipt"
	AchievementFirstWeek       Achievement = "first_week_streak"
	AchievementMonthComplete   Achievement = "month_complete"
	AchievementStoreScout      Achievement = "store_scout"
	AchievementCarbonMilestone Achievement = "carbon_milestone"
)

// achievementRewards is the static payout table. Values are distributed
// exactly like receipt rewards; there is no formula behind them.
var achievementRewards = map[Achievement]Units{
	AchievementFirstReceipt:    50,
	AchievementFirstWeek:       100,
	AchievementMonthComplete:   250,
	AchievementStoreScout:      30,
	AchievementCarbonMilestone: 150,
}

// AchievementReward looks up the fixed reward for an achievement. The second
// return value is false for unknown achievement types.
func AchievementReward(a Achievement) (Units, bool) {
	reward, ok := achievementRewards[a]
	return reward, ok
}
