package ranking

import (
	"math"

	"monster-quiz-engine/internal/domain"
)

// Score weights.
const (
	pointsPerCorrect = 100
	accuracyScale    = 1000
	pointsPerLevel   = 50
	pointsPerMonster = 25
	pointsPerStreak  = 10
)

// Score computes the leaderboard score of a progress snapshot:
// correct*100 + round(accuracy*1000) + level*50 + monsters*25 + streak*10.
func Score(p domain.UserProgress, monstersCollected int) int {
	return p.CorrectAnswers*pointsPerCorrect +
		int(math.Round(p.Accuracy()*accuracyScale)) +
		p.Level*pointsPerLevel +
		monstersCollected*pointsPerMonster +
		p.Streak*pointsPerStreak
}
