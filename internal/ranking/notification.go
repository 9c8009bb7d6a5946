package ranking

import (
	"fmt"

	"monster-quiz-engine/internal/domain"
)

// notificationFor classifies an improved rank. previous == 0 means the player
// was not ranked before, which counts as an improvement.
func notificationFor(c domain.Category, player string, previous, current int) (domain.RankingNotification, bool) {
	if current == 0 {
		return domain.RankingNotification{}, false
	}
	if previous != 0 && current >= previous {
		return domain.RankingNotification{}, false
	}

	n := domain.RankingNotification{
		Category:     c,
		PlayerName:   player,
		PreviousRank: previous,
		NewRank:      current,
	}
	label := categoryLabel(c)
	switch {
	case current == 1:
		n.Type = domain.NotificationFirstPlace
		n.Message = fmt.Sprintf("You took 1st place in the %s ranking!", label)
	case current <= 3:
		n.Type = domain.NotificationTop3
		n.Message = fmt.Sprintf("You reached #%d in the %s ranking!", current, label)
	default:
		n.Type = domain.NotificationRankUp
		n.Message = fmt.Sprintf("You moved up to #%d in the %s ranking!", current, label)
	}
	return n, true
}

func categoryLabel(c domain.Category) string {
	switch c {
	case domain.CategoryDaily:
		return "daily"
	case domain.CategoryWeekly:
		return "weekly"
	case domain.CategoryAllTime:
		return "all-time"
	}
	return string(c)
}
