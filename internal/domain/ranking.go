package domain

import "time"

// Category names one leaderboard window.
type Category string

const (
	CategoryDaily   Category = "daily"
	CategoryWeekly  Category = "weekly"
	CategoryAllTime Category = "all_time"
)

// Categories lists the windows in display order.
func Categories() []Category {
	return []Category{CategoryDaily, CategoryWeekly, CategoryAllTime}
}

// ParseCategory maps a user-supplied name onto a Category.
func ParseCategory(raw string) (Category, error) {
	switch raw {
	case "daily":
		return CategoryDaily, nil
	case "weekly":
		return CategoryWeekly, nil
	case "all_time", "allTime", "alltime":
		return CategoryAllTime, nil
	}
	return "", ErrUnknownCategory
}

// RankingEntry is one player's best snapshot inside a window.
type RankingEntry struct {
	ID                string    `json:"id"`
	PlayerName        string    `json:"playerName"`
	Score             int       `json:"score"`
	Level             int       `json:"level"`
	CorrectAnswers    int       `json:"correctAnswers"`
	TotalQuestions    int       `json:"totalQuestions"`
	Accuracy          float64   `json:"accuracy"`
	MonstersCollected int       `json:"monstersCollected"`
	DateAchieved      time.Time `json:"dateAchieved"`
}

// RankingData holds the three windows.
type RankingData struct {
	DailyRankings   []RankingEntry `json:"dailyRankings"`
	WeeklyRankings  []RankingEntry `json:"weeklyRankings"`
	AllTimeRankings []RankingEntry `json:"allTimeRankings"`
	LastUpdated     time.Time      `json:"lastUpdated"`
}

// NewRankingData returns empty windows.
func NewRankingData() RankingData {
	return RankingData{
		DailyRankings:   []RankingEntry{},
		WeeklyRankings:  []RankingEntry{},
		AllTimeRankings: []RankingEntry{},
	}
}

// Entries returns the list for a category.
func (d RankingData) Entries(c Category) ([]RankingEntry, error) {
	switch c {
	case CategoryDaily:
		return d.DailyRankings, nil
	case CategoryWeekly:
		return d.WeeklyRankings, nil
	case CategoryAllTime:
		return d.AllTimeRankings, nil
	}
	return nil, ErrUnknownCategory
}

// Clone deep-copies the windows.
func (d RankingData) Clone() RankingData {
	return RankingData{
		DailyRankings:   append([]RankingEntry{}, d.DailyRankings...),
		WeeklyRankings:  append([]RankingEntry{}, d.WeeklyRankings...),
		AllTimeRankings: append([]RankingEntry{}, d.AllTimeRankings...),
		LastUpdated:     d.LastUpdated,
	}
}

// NotificationType classifies a rank change.
type NotificationType string

const (
	NotificationFirstPlace NotificationType = "first_place"
	NotificationTop3       NotificationType = "top_3"
	NotificationRankUp     NotificationType = "rank_up"
)

// RankingNotification is emitted when a submission improved a player's rank.
type RankingNotification struct {
	Type         NotificationType `json:"type"`
	Category     Category         `json:"category"`
	PlayerName   string           `json:"playerName"`
	PreviousRank int              `json:"previousRank"`
	NewRank      int              `json:"newRank"`
	Message      string           `json:"message"`
}

// RankingExport is the full-state JSON export.
type RankingExport struct {
	ExportDate time.Time   `json:"exportDate"`
	Rankings   RankingData `json:"rankings"`
}

// RankingEvent is fanned out to subscribers after each score submission.
type RankingEvent struct {
	PlayerName    string                `json:"playerName"`
	Notifications []RankingNotification `json:"notifications"`
	Rankings      RankingData           `json:"rankings"`
}
