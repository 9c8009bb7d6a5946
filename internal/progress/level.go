package progress

// BaseExperience is awarded for every correct answer before the streak bonus.
const BaseExperience = 10

const (
	firstLevelCost = 100
	levelCostStep  = 50
	streakBonusPer = 2
	maxStreakBonus = 20
)

// ExperienceToAdvance is the experience needed to go from level to level+1:
// 100 for 1->2, 150 for 2->3, 200 for 3->4 and so on.
func ExperienceToAdvance(level int) int {
	if level < 1 {
		level = 1
	}
	return firstLevelCost + (level-1)*levelCostStep
}

// ExperienceForLevel is the cumulative experience at which level is reached.
func ExperienceForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	n := level - 1
	return firstLevelCost*n + levelCostStep*n*(n-1)/2
}

// CalculateLevel returns the largest level whose cumulative threshold is <= experience.
func CalculateLevel(experience int) int {
	level := 1
	for ExperienceForLevel(level+1) <= experience {
		level++
	}
	return level
}

// StreakBonus is the extra experience for a correct answer at the given streak:
// two points per consecutive answer, capped at 20 from streak 10 onward.
func StreakBonus(streak int) int {
	if streak <= 0 {
		return 0
	}
	bonus := streak * streakBonusPer
	if bonus > maxStreakBonus {
		return maxStreakBonus
	}
	return bonus
}

func levelProgress(experience int) (current, required int, percentage float64) {
	level := CalculateLevel(experience)
	current = experience - ExperienceForLevel(level)
	required = ExperienceToAdvance(level)
	percentage = 100 * float64(current) / float64(required)
	return current, required, percentage
}
